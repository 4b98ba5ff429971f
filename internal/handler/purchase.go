package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/grocerytracker/internal/model"
	"github.com/dukerupert/grocerytracker/internal/store"
	"github.com/dukerupert/grocerytracker/internal/summary"
	"github.com/dukerupert/grocerytracker/internal/websocket"
)

type PurchaseHandler struct {
	store    *store.PurchaseStore
	summary  *summary.Service
	events   Events
	counters Counters
	logger   *slog.Logger
}

func NewPurchaseHandler(ps *store.PurchaseStore, ss *summary.Service, events Events, counters Counters, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{store: ps, summary: ss, events: events, counters: counters, logger: logger}
}

// purchaseRequest accepts price and quantity as JSON numbers or numeric
// strings.
type purchaseRequest struct {
	ItemName     string      `json:"item_name"`
	Price        json.Number `json:"price"`
	Quantity     json.Number `json:"quantity"`
	Unit         string      `json:"unit"`
	Store        string      `json:"store"`
	PurchaseDate string      `json:"purchase_date"`
}

func (req purchaseRequest) toNewPurchase() (model.NewPurchase, error) {
	np := model.NewPurchase{
		ItemName: req.ItemName,
		Unit:     req.Unit,
		Store:    req.Store,
	}
	if strings.TrimSpace(req.Price.String()) == "" {
		return np, &store.ValidationError{Field: "price", Reason: "is required"}
	}
	price, err := store.ParsePrice(req.Price.String())
	if err != nil {
		return np, err
	}
	np.Price = price

	if np.Quantity, err = store.ParseQuantity(req.Quantity.String()); err != nil {
		return np, err
	}
	if strings.TrimSpace(req.PurchaseDate) != "" {
		d, err := model.ParseDate(req.PurchaseDate)
		if err != nil {
			return np, &store.ValidationError{Field: "purchase_date", Reason: "must be YYYY-MM-DD"}
		}
		np.PurchaseDate = &d
	}
	return np, nil
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	np, err := req.toNewPurchase()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := h.store.Add(r.Context(), np)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if p == nil {
		writeMessage(w, http.StatusInternalServerError, "purchase vanished after insert")
		return
	}

	h.counters.PurchaseAdded()
	h.events.Publish(websocket.PurchaseCreated(*p))
	writeJSON(w, http.StatusCreated, p)
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, nonNil(f.Apply(all)))
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if p == nil {
		writeMessage(w, http.StatusNotFound, "purchase not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete answers 204 whether or not the purchase existed. Only an actual
// removal is counted and broadcast.
func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if removed {
		h.counters.PurchaseDeleted()
		h.events.Publish(websocket.PurchaseDeleted(id))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PurchaseHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.summary.ItemHistory(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(history))
}
