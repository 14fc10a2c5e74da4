package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/Thapan6/StudentReportCard/internal/service"
)

type ProgressService interface {
	GetFileProgress(fileName string) *service.ProgressInfo
	GetAllFileProgress() []*service.ProgressInfo
	RegisterProgressListener(ch chan *service.ProgressInfo)
	UnregisterProgressListener(ch chan *service.ProgressInfo)
}

type ProgressHandler struct {
	uploadService ProgressService
}

func NewProgressHandler(uploadService ProgressService) *ProgressHandler {
	return &ProgressHandler{uploadService: uploadService}
}

// GetFileProgress returns the import progress for one file.
func (h *ProgressHandler) GetFileProgress(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fileName parameter is required"})
		return
	}

	progress := h.uploadService.GetFileProgress(filepath.Base(fileName))
	if progress == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found or not being processed"})
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *ProgressHandler) GetAllProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.uploadService.GetAllFileProgress())
}

// SSEProgress streams progress updates as Server-Sent Events until the
// client goes away.
func (h *ProgressHandler) SSEProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	progressChan := make(chan *service.ProgressInfo, 16)
	h.uploadService.RegisterProgressListener(progressChan)
	defer h.uploadService.UnregisterProgressListener(progressChan)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case progress := <-progressChan:
			data, err := json.Marshal(progress)
			if err != nil {
				slog.Warn("marshal progress", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				slog.Info("progress stream closed", "request_id", RequestIDFrom(r.Context()), "error", err)
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
