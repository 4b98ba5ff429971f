package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/grocerytracker/internal/backup"
)

// Backups is the part of the backup manager the API drives.
type Backups interface {
	Run(ctx context.Context, passphrase string) (*backup.Info, error)
	List() ([]backup.Info, error)
}

type BackupHandler struct {
	backups    Backups
	passphrase string
	finished   func(error)
	logger     *slog.Logger
}

// NewBackupHandler serves backups encrypted with passphrase. finished is
// called after every run that was not refused as already in progress.
func NewBackupHandler(b Backups, passphrase string, finished func(error), logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: b, passphrase: passphrase, finished: finished, logger: logger}
}

func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.passphrase == "" {
		writeMessage(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}
	info, err := h.backups.Run(r.Context(), h.passphrase)
	if errors.Is(err, backup.ErrInProgress) {
		writeMessage(w, http.StatusConflict, "a backup is already running")
		return
	}
	h.finished(err)
	if err != nil {
		h.logger.Error("backup failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.backups.List()
	if err != nil {
		h.logger.Error("list backups failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if list == nil {
		list = []backup.Info{}
	}
	writeJSON(w, http.StatusOK, list)
}
