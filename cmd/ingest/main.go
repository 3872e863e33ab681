// Ingest tool for loading the incident dataset into the Railwatch store.
//
// Usage:
//
//	go run ./cmd/ingest -csv ./data/02_data_for_ML.csv
//
// This tool:
//  1. Reads the ';'-delimited incident CSV and checks it against the schema
//  2. Replaces the incidents table in the configured repository
//  3. Prints the resulting domains so the server can run with dataset.source: repository
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/railwatch/railwatch/internal/domain"
	"github.com/railwatch/railwatch/internal/loader"
	"github.com/railwatch/railwatch/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := domain.LoadConfig(os.Getenv("RAILWATCH_CONFIG"))
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}

	csvPath := flag.String("csv", cfg.Dataset.CSVPath, "Path to the incident CSV")
	delimiter := flag.String("delimiter", cfg.Dataset.Delimiter, "Field delimiter")
	dryRun := flag.Bool("dry-run", false, "Validate the CSV without writing")
	flag.Parse()

	opts := loader.Options{}
	if *delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(*delimiter)
	}

	start := time.Now()
	ds, err := loader.LoadCSV(*csvPath, opts)
	if err != nil {
		fatalf("failed to read %s: %v", *csvPath, err)
	}

	fmt.Printf("Read %d incidents from %s in %s\n", ds.Len(), *csvPath, time.Since(start).Round(time.Millisecond))
	printDomains(ds)

	if *dryRun {
		fmt.Println("Dry run: repository not modified")
		return
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		fatalf("failed to open repository: %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := repo.ReplaceIncidents(ctx, ds.Incidents()); err != nil {
		fatalf("failed to store incidents: %v", err)
	}

	stored, err := loader.LoadRepository(ctx, repo)
	if err != nil {
		fatalf("failed to read back incidents: %v", err)
	}
	if stored.Fingerprint() != ds.Fingerprint() {
		fatalf("stored dataset differs from source (fingerprint %s != %s)", stored.Fingerprint(), ds.Fingerprint())
	}

	fmt.Printf("Stored %d incidents in %s (fingerprint %s)\n", stored.Len(), cfg.Repository.Driver, stored.Fingerprint()[:12])
}

func printDomains(ds *domain.Dataset) {
	d := ds.Domains()
	fmt.Printf("  Years:      %d..%d\n", d.Years.Min, d.Years.Max)
	fmt.Printf("  Lines:      %d\n", len(d.Lines))
	fmt.Printf("  Systems:    %d\n", len(d.Systems))
	fmt.Printf("  Categories: %d\n", len(d.Categories))
	fmt.Printf("  Vehicles:   %d\n", len(d.Vehicles))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
