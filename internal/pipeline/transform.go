package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
)

// SheetTransformer turns a raw sheet export into a normalized dataset.
type SheetTransformer struct {
	format     domain.Format
	normalizer *domain.Normalizer
	logger     *slog.Logger
}

// NewTransformer creates a SheetTransformer for exports in format, with
// timestamps interpreted in loc.
func NewTransformer(format domain.Format, loc *time.Location, logger *slog.Logger) *SheetTransformer {
	return &SheetTransformer{
		format:     format,
		normalizer: domain.NewNormalizer(loc),
		logger:     logger,
	}
}

// Transform decodes and normalizes one export. Decode failures are reported
// as *domain.FetchError since the payload is not a usable sheet export.
func (t *SheetTransformer) Transform(station string, raw []byte) (domain.Dataset, error) {
	table, err := domain.Decode(t.format, raw)
	if err != nil {
		return domain.Dataset{}, &domain.FetchError{Station: station, Err: fmt.Errorf("decode %s: %w", t.format, err)}
	}

	readings, cols, stats, err := t.normalizer.Normalize(table)
	for _, dropped := range stats.Dropped {
		t.logger.Debug("row dropped", "station", station, "row", dropped.Row, "error", dropped.Error())
	}
	if err != nil {
		return domain.Dataset{Station: station, Stats: stats}, err
	}

	return domain.Dataset{
		Station:  station,
		Readings: readings,
		Columns:  cols,
		Stats:    stats,
		LoadedAt: domain.Now(),
	}, nil
}
