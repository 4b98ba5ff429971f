package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/grocerytracker/internal/filter"
	"github.com/dukerupert/grocerytracker/internal/model"
	"github.com/dukerupert/grocerytracker/internal/store"
	"github.com/dukerupert/grocerytracker/internal/summary"
)

type SummaryHandler struct {
	store   *store.PurchaseStore
	summary *summary.Service
	logger  *slog.Logger
}

func NewSummaryHandler(ps *store.PurchaseStore, ss *summary.Service, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{store: ps, summary: ss, logger: logger}
}

func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.summary.PriceSummary(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if summaries == nil {
		summaries = []model.ItemSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *SummaryHandler) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.summary.Overview(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type filterOptions struct {
	Items  []string `json:"items"`
	Stores []string `json:"stores"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to,omitempty"`
}

// Options lists the values a client can filter by.
func (h *SummaryHandler) Options(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, stores := filter.Options(all)
	opts := filterOptions{Items: items, Stores: stores}
	if opts.Items == nil {
		opts.Items = []string{}
	}
	if opts.Stores == nil {
		opts.Stores = []string{}
	}
	if first, last, ok := filter.DateRange(all); ok {
		opts.From = first.Format(model.DateLayout)
		opts.To = last.Format(model.DateLayout)
	}
	writeJSON(w, http.StatusOK, opts)
}
