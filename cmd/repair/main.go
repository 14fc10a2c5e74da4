// Command repair rewrites stored marks into canonical JSON and recomputes
// total, percentage and grade for every student.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/Thapan6/StudentReportCard/internal/config"
	"github.com/Thapan6/StudentReportCard/internal/database"
	"github.com/Thapan6/StudentReportCard/internal/service"
)

func main() {
	cfg := config.Load()
	dbPath := flag.String("db", cfg.DBPath, "SQLite database file")
	flag.Parse()
	cfg.DBPath = *dbPath

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close(db)

	report, err := service.NewRepairService(db).RepairMarks(context.Background())
	if err != nil {
		log.Fatalf("repair failed: %v", err)
	}

	fmt.Println("Database fixed successfully!")
	fmt.Println("  " + report.String())
}
