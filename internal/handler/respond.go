// Package handler implements the JSON, text, CSV and PNG endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/grocerytracker/internal/filter"
	"github.com/dukerupert/grocerytracker/internal/model"
	"github.com/dukerupert/grocerytracker/internal/store"
	"github.com/dukerupert/grocerytracker/internal/websocket"
)

// Events receives change notifications for live clients.
type Events interface {
	Publish(websocket.Event)
}

// Counters records purchase mutations.
type Counters interface {
	PurchaseAdded()
	PurchaseDeleted()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps validation failures to 400 and everything else to 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *store.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
		return
	}
	logger.Error("request failed", "error", err)
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseFilter reads item, store, from and to query parameters. item and
// store may repeat.
func parseFilter(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()
	f, err := filter.Parse(q["item"], q["store"], q.Get("from"), q.Get("to"))
	if err != nil {
		return filter.Filter{}, &store.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return f, nil
}

func nonNil(purchases []model.Purchase) []model.Purchase {
	if purchases == nil {
		return []model.Purchase{}
	}
	return purchases
}
