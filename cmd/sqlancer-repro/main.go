package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"sqlancer/internal/repro"
)

func main() {
	caseDir := flag.String("case", "", "path to case directory")
	dsn := flag.String("dsn", "", "database DSN")
	dialectName := flag.String("dialect", "", "dialect name, defaults to the one in summary.json")
	database := flag.String("database", "sqlancer_repro", "database name for reproduction")
	timeout := flag.Duration("timeout", 30*time.Second, "per-statement timeout")
	useMin := flag.Bool("min", true, "prefer min/repro.sql if present")
	flag.Parse()

	if *caseDir == "" || *dsn == "" {
		fmt.Fprintln(os.Stderr, "case and dsn are required")
		flag.Usage()
		os.Exit(1)
	}

	opts := repro.Options{
		CaseDir:  *caseDir,
		Dialect:  *dialectName,
		DSN:      *dsn,
		Database: *database,
		Timeout:  *timeout,
		UseMin:   *useMin,
	}
	if err := repro.Run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "repro failed: %v\n", err)
		os.Exit(1)
	}
}
