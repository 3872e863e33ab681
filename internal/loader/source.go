package loader

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/railwatch/railwatch/internal/domain"
)

// Dataset sources.
const (
	SourceCSV        = "csv"
	SourceRepository = "repository"
)

// LoadRepository reads the ingested incident table.
func LoadRepository(ctx context.Context, repo domain.Repository) (*domain.Dataset, error) {
	rows, err := repo.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	incidents := make([]domain.Incident, len(rows))
	for i, r := range rows {
		incidents[i] = r.Incident
	}
	return domain.NewDataset(incidents), nil
}

// Load reads the dataset from the configured source. repo may be nil when
// the source is a CSV file.
func Load(ctx context.Context, cfg domain.DatasetConfig, repo domain.Repository) (*domain.Dataset, error) {
	switch cfg.Source {
	case SourceCSV, "":
		opts := Options{}
		if cfg.Delimiter != "" {
			r, _ := utf8.DecodeRuneInString(cfg.Delimiter)
			opts.Delimiter = r
		}
		return LoadCSV(cfg.CSVPath, opts)

	case SourceRepository:
		if repo == nil {
			return nil, fmt.Errorf("dataset source %q requires a repository", cfg.Source)
		}
		return LoadRepository(ctx, repo)

	default:
		return nil, fmt.Errorf("unsupported dataset source: %s", cfg.Source)
	}
}
