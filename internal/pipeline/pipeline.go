package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/observability"
)

// ErrUnknownStation is returned for station ids that are not configured.
var ErrUnknownStation = errors.New("unknown station")

// Fetcher downloads raw sheet exports, normally through a cache.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source) ([]byte, error)
	// FetchFresh bypasses the cache and refills it.
	FetchFresh(ctx context.Context, src domain.Source) ([]byte, error)
	Invalidate(ctx context.Context, srcs ...domain.Source) error
}

// Transformer converts a raw export into a normalized dataset.
type Transformer interface {
	Transform(station string, raw []byte) (domain.Dataset, error)
}

// Publisher hands a station's readings to an outer sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, station string, readings []domain.Reading) error
}

// Pipeline orchestrates fetch, normalize, select and aggregate for each
// configured station, and pushes fresh data to publishers on Sync.
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	sources     []domain.Source
	publishers  []Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(f Fetcher, t Transformer, sources []domain.Source, publishers []Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		transformer: t,
		sources:     sources,
		publishers:  publishers,
		logger:      logger,
		metrics:     metrics,
	}
}

// Stations returns the configured station ids in configuration order.
func (p *Pipeline) Stations() []string {
	ids := make([]string, len(p.sources))
	for i, s := range p.sources {
		ids[i] = s.Station
	}
	return ids
}

// CheckReadiness returns nil once any station has loaded successfully,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no station data has been loaded yet")
	}
	return nil
}

// Load fetches (through the cache) and normalizes one station's sheet.
func (p *Pipeline) Load(ctx context.Context, station string) (domain.Dataset, error) {
	src, err := p.source(station)
	if err != nil {
		return domain.Dataset{}, err
	}
	raw, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		return domain.Dataset{}, err
	}
	return p.transform(station, raw)
}

// View loads a station and builds the dashboard view for req. A station
// with no readings, or none in the selected interval, yields
// *domain.EmptyResultError.
func (p *Pipeline) View(ctx context.Context, station string, req domain.ViewRequest) (domain.View, error) {
	ds, err := p.Load(ctx, station)
	if err != nil {
		p.metrics.ViewsServed.WithLabelValues(station, viewOutcome(err)).Inc()
		return domain.View{}, err
	}
	v, err := domain.BuildView(ds, req, domain.Now())
	p.metrics.ViewsServed.WithLabelValues(station, viewOutcome(err)).Inc()
	return v, err
}

// Refresh drops a station's cached export so the next load downloads it.
func (p *Pipeline) Refresh(ctx context.Context, station string) error {
	src, err := p.source(station)
	if err != nil {
		return err
	}
	if err := p.fetcher.Invalidate(ctx, src); err != nil {
		return fmt.Errorf("invalidate %s: %w", station, err)
	}
	p.logger.Info("station cache cleared", "station", station)
	return nil
}

// RefreshAll drops every station's cached export.
func (p *Pipeline) RefreshAll(ctx context.Context) error {
	if err := p.fetcher.Invalidate(ctx, p.sources...); err != nil {
		return fmt.Errorf("invalidate all: %w", err)
	}
	p.logger.Info("all station caches cleared", "stations", len(p.sources))
	return nil
}

// Sync downloads every station bypassing the cache and publishes the
// readings to all publishers. A failing station or publisher is logged and
// does not stop the others; all failures are joined into the returned error.
func (p *Pipeline) Sync(ctx context.Context) error {
	var errs []error
	for _, src := range p.sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := p.syncStation(ctx, src); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		p.metrics.SyncRuns.WithLabelValues("error").Inc()
		p.logger.Error("sync finished with errors", "error", err)
		return err
	}
	p.metrics.SyncRuns.WithLabelValues("success").Inc()
	p.logger.Info("sync finished", "stations", len(p.sources), "publishers", len(p.publishers))
	return nil
}

func (p *Pipeline) syncStation(ctx context.Context, src domain.Source) error {
	raw, err := p.fetcher.FetchFresh(ctx, src)
	if err != nil {
		return err
	}
	ds, err := p.transform(src.Station, raw)
	if err != nil {
		var empty *domain.EmptyResultError
		if errors.As(err, &empty) {
			p.logger.Info("station has no readings to sync", "station", src.Station)
			return nil
		}
		return fmt.Errorf("sync %s: %w", src.Station, err)
	}

	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, src.Station, ds.Readings); err != nil {
			p.logger.Error("publish failed", "station", src.Station, "sink", pub.Name(), "error", err)
			errs = append(errs, fmt.Errorf("publish %s to %s: %w", src.Station, pub.Name(), err))
			continue
		}
		p.metrics.ReadingsPublished.WithLabelValues(pub.Name()).Add(float64(len(ds.Readings)))
	}
	return errors.Join(errs...)
}

func (p *Pipeline) transform(station string, raw []byte) (domain.Dataset, error) {
	ds, err := p.transformer.Transform(station, raw)
	p.recordStats(station, ds.Stats)
	if err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			p.logger.Error("sheet schema mismatch", "station", station, "missing", schemaErr.Missing)
		}
		return domain.Dataset{}, err
	}
	p.ready.Store(true)
	return ds, nil
}

func (p *Pipeline) recordStats(station string, s domain.NormalizeStats) {
	if s.RowsOut > 0 {
		p.metrics.RowsParsed.WithLabelValues(station).Add(float64(s.RowsOut))
	}
	if s.DroppedTimestamp > 0 {
		p.metrics.RowsDropped.WithLabelValues(station, "timestamp").Add(float64(s.DroppedTimestamp))
	}
	for column, n := range map[string]int{
		"level": s.InvalidLevel,
		"rain":  s.InvalidRain,
	} {
		if n > 0 {
			p.metrics.InvalidCells.WithLabelValues(station, column).Add(float64(n))
		}
	}
}

func (p *Pipeline) source(station string) (domain.Source, error) {
	for _, s := range p.sources {
		if s.Station == station {
			return s, nil
		}
	}
	return domain.Source{}, fmt.Errorf("%w: %q", ErrUnknownStation, station)
}

func viewOutcome(err error) string {
	var empty *domain.EmptyResultError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &empty):
		return "no_data"
	default:
		return "error"
	}
}
