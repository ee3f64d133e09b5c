package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacesedan/agora/internal/db"
	"github.com/spacesedan/agora/internal/models"
)

// Store persists generated summaries keyed by the exact headline string.
//
// Nothing enforces one summary per headline across processes: two writers
// racing on a miss can both save. Readers take the first stored row.
type Store interface {
	Lookup(ctx context.Context, headline string) (string, bool, error)
	Save(ctx context.Context, summary models.CachedSummary) error
}

// TableStore keeps summaries in the Summaries table of a db.Backend.
type TableStore struct {
	backend   db.Backend
	retention int
}

func NewTableStore(backend db.Backend, retention int) *TableStore {
	return &TableStore{backend: backend, retention: retention}
}

func (s *TableStore) Lookup(ctx context.Context, headline string) (string, bool, error) {
	records, err := s.backend.ReadAll(ctx, db.SummariesTable.Name)
	if err != nil {
		return "", false, fmt.Errorf("[SummaryStore] read summaries: %w", err)
	}

	for _, rec := range records {
		if rec.Get("headline") == headline {
			return rec.Get("summary_text"), true, nil
		}
	}
	return "", false, nil
}

func (s *TableStore) Save(ctx context.Context, summary models.CachedSummary) error {
	row := []string{summary.Headline, summary.SummaryText, summary.GeneratedAt}
	if err := s.backend.AppendRow(ctx, db.SummariesTable.Name, row); err != nil {
		return fmt.Errorf("[SummaryStore] append summary: %w", err)
	}

	if err := s.backend.Trim(ctx, db.SummariesTable.Name, s.retention); err != nil {
		slog.Warn("[SummaryStore] Failed to trim summaries",
			slog.String("error", err.Error()))
	}
	return nil
}

// LayeredStore consults stores front to back. A hit in a later layer is
// copied into the layers in front of it.
type LayeredStore struct {
	layers []Store
}

func NewLayeredStore(layers ...Store) *LayeredStore {
	return &LayeredStore{layers: layers}
}

func (s *LayeredStore) Lookup(ctx context.Context, headline string) (string, bool, error) {
	var errs []error
	for i, layer := range s.layers {
		text, ok, err := layer.Lookup(ctx, headline)
		if err != nil {
			slog.Warn("[SummaryStore] Layer lookup failed",
				slog.Int("layer", i),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		s.backfill(ctx, i, headline, text)
		return text, true, nil
	}
	return "", false, errors.Join(errs...)
}

func (s *LayeredStore) backfill(ctx context.Context, hit int, headline, text string) {
	for i := 0; i < hit; i++ {
		err := s.layers[i].Save(ctx, models.CachedSummary{Headline: headline, SummaryText: text})
		if err != nil {
			slog.Warn("[SummaryStore] Backfill failed",
				slog.Int("layer", i),
				slog.String("error", err.Error()))
		}
	}
}

func (s *LayeredStore) Save(ctx context.Context, summary models.CachedSummary) error {
	var errs []error
	for _, layer := range s.layers {
		if err := layer.Save(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
