package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Thapan6/StudentReportCard/internal/service"
	"github.com/google/uuid"
)

type UploadService interface {
	ProcessCSV(filePath string) error
}

const defaultMaxUploadSize = 100 << 20 // 100MB

type UploadHandler struct {
	uploadService UploadService
	uploadDir     string
	maxUploadSize int64
}

func NewUploadHandler(uploadService UploadService, uploadDir string) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		uploadDir:     uploadDir,
		maxUploadSize: defaultMaxUploadSize,
	}
}

// UploadCSV stores the posted files and imports each one in the background.
func (h *UploadHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create uploads directory"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "File too large or bad request"})
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No files uploaded"})
		return
	}

	requestID := RequestIDFrom(r.Context())
	fileNames := make([]string, 0, len(files))
	for _, fh := range files {
		savePath, err := h.save(fh)
		if err != nil {
			slog.Error("save upload", "request_id", requestID, "file", fh.Filename, "error", err)
			continue
		}
		fileNames = append(fileNames, filepath.Base(savePath))

		go func(filePath string) {
			if err := h.uploadService.ProcessCSV(filePath); err != nil {
				slog.Error("import failed", "request_id", requestID, "file", filePath, "error", err)
			}
		}(savePath)
	}

	if len(fileNames) == 0 {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to save uploaded files"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Files uploaded successfully and processing started",
		"files":   fileNames,
	})
}

func (h *UploadHandler) save(fh *multipart.FileHeader) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Stored names are unique so concurrent uploads of the same file keep
	// separate copies and progress entries.
	savePath := filepath.Join(h.uploadDir, uuid.NewString()+"_"+filepath.Base(fh.Filename))
	outFile, err := os.Create(savePath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, file); err != nil {
		return "", err
	}
	return savePath, nil
}

var _ UploadService = (*service.UploadService)(nil)
