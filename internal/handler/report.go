package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/grocerytracker/internal/chart"
	"github.com/dukerupert/grocerytracker/internal/export"
	"github.com/dukerupert/grocerytracker/internal/report"
	"github.com/dukerupert/grocerytracker/internal/store"
)

// ReportHandler serves derived documents: CSV export, text report and
// charts.
type ReportHandler struct {
	store  *store.PurchaseStore
	logger *slog.Logger
	now    func() time.Time
}

func NewReportHandler(ps *store.PurchaseStore, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{store: ps, logger: logger, now: time.Now}
}

func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	all, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, f.Apply(all)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(h.now())))
	w.Write(buf.Bytes())
}

func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	all, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rep := report.Build(all, report.Options{Items: f.Items, From: f.From, To: f.To, Now: h.now()})
	var buf bytes.Buffer
	if err := report.Render(&buf, rep); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

// Chart serves /api/charts/{file} where file is <kind>.png. Query filters
// narrow the plotted purchases.
func (h *ReportHandler) Chart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown chart")
		return
	}
	kind, err := chart.ParseKind(name)
	if err != nil {
		writeMessage(w, http.StatusNotFound, err.Error())
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	all, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var item string
	if len(f.Items) == 1 {
		item = f.Items[0]
	}
	p, err := chart.Build(kind, f.Apply(all), item)
	if errors.Is(err, chart.ErrNoData) {
		writeMessage(w, http.StatusNotFound, "no data to chart")
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := chart.WritePNG(&buf, p); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
