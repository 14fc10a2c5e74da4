package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Thapan6/StudentReportCard/internal/config"
	"github.com/Thapan6/StudentReportCard/internal/database"
	"github.com/Thapan6/StudentReportCard/internal/handler"
	"github.com/Thapan6/StudentReportCard/internal/service"
	"github.com/gorilla/handlers"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(config.NewLogger(cfg))

	addr := flag.String("addr", ":"+cfg.AppPort, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database file")
	flag.Parse()
	cfg.DBPath = *dbPath

	db, err := database.InitDB(cfg)
	if err != nil {
		slog.Error("failed to initialise database", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	// Services
	studentService := service.NewStudentService(db)
	uploadService := service.NewUploadService(db)
	exportService := service.NewExportService()

	// Handlers
	studentHandler := handler.NewStudentHandler(studentService, exportService)
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.UploadDir)
	progressHandler := handler.NewProgressHandler(uploadService)

	r := handler.NewRouter(studentHandler, uploadHandler, progressHandler)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)

	server := &http.Server{
		Addr:              *addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("server listening", "addr", *addr, "driver", cfg.DBDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
