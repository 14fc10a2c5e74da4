package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Thapan6/StudentReportCard/internal/config"
	"github.com/Thapan6/StudentReportCard/internal/database"
	"github.com/Thapan6/StudentReportCard/internal/desk"
	"github.com/Thapan6/StudentReportCard/internal/service"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(config.NewLogger(cfg))

	dbPath := flag.String("db", cfg.DBPath, "SQLite database file")
	flag.Parse()
	cfg.DBPath = *dbPath

	db, err := database.InitDB(cfg)
	if err != nil {
		slog.Error("failed to initialise database", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := desk.Run(ctx, os.Stdin, os.Stdout, service.NewStudentService(db)); err != nil && ctx.Err() == nil {
		slog.Error("desk exited", "error", err)
		os.Exit(1)
	}
}
