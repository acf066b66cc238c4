package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/observability"
	"github.com/couchcryptid/hydro-monitor-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cubataoCSV = `Carimbo de data/hora,NOME,Nível do Rio (m),Chuva (mm),Assoreamento [Nova]
01/06/2024 07:00:00,Ana,"2,10m","0,0",Normal
01/06/2024 13:00:00,Bruno,0,"3,5",Normal
02/06/2024 07:00:00,Ana,"2,40m",,Alto
not-a-date,Ana,"2,00",,
03/06/2024 07:00:00,Carla,"2,80",12,Alto
`

const piraiCSV = `Carimbo de data/hora,NOME,Nível do Rio (m),Captação [Gradeamento]
02/06/2024 08:00:00,Davi,"1,50",Limpo
`

var (
	cubatao = domain.Source{Station: "cubatao", SheetID: "sheet-c", GID: "0"}
	pirai   = domain.Source{Station: "pirai", SheetID: "sheet-p", GID: "1"}
)

// --- mocks ---

type mockFetcher struct {
	mu          sync.Mutex
	payloads    map[string]string
	errs        map[string]error
	fetches     int
	freshes     int
	invalidated []string
}

func (m *mockFetcher) Fetch(_ context.Context, src domain.Source) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return m.payload(src)
}

func (m *mockFetcher) FetchFresh(_ context.Context, src domain.Source) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freshes++
	return m.payload(src)
}

func (m *mockFetcher) Invalidate(_ context.Context, srcs ...domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range srcs {
		m.invalidated = append(m.invalidated, s.Station)
	}
	return nil
}

func (m *mockFetcher) payload(src domain.Source) ([]byte, error) {
	if err := m.errs[src.Station]; err != nil {
		return nil, &domain.FetchError{Station: src.Station, Err: err}
	}
	return []byte(m.payloads[src.Station]), nil
}

type recordingPublisher struct {
	name      string
	err       error
	published map[string][]domain.Reading
}

func (r *recordingPublisher) Name() string { return r.name }

func (r *recordingPublisher) Publish(_ context.Context, station string, readings []domain.Reading) error {
	if r.err != nil {
		return r.err
	}
	if r.published == nil {
		r.published = map[string][]domain.Reading{}
	}
	r.published[station] = readings
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(f pipeline.Fetcher, pubs ...pipeline.Publisher) *pipeline.Pipeline {
	tfm := pipeline.NewTransformer(domain.FormatCSV, time.UTC, discardLogger())
	return pipeline.New(f, tfm, []domain.Source{cubatao, pirai}, pubs, discardLogger(), observability.NewMetricsForTesting())
}

func defaultFetcher() *mockFetcher {
	return &mockFetcher{payloads: map[string]string{"cubatao": cubataoCSV, "pirai": piraiCSV}}
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// --- tests ---

func TestPipeline_Load(t *testing.T) {
	freezeClock(t, time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC))
	p := newPipeline(defaultFetcher())

	require.Error(t, p.CheckReadiness(context.Background()))

	ds, err := p.Load(context.Background(), "cubatao")
	require.NoError(t, err)
	assert.Equal(t, "cubatao", ds.Station)
	assert.Len(t, ds.Readings, 4)
	assert.Equal(t, 1, ds.Stats.DroppedTimestamp)
	assert.Equal(t, domain.Columns{Rain: true, Silting: true}, ds.Columns)
	assert.Equal(t, time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC), ds.LoadedAt)

	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Load_UnknownStation(t *testing.T) {
	p := newPipeline(defaultFetcher())
	_, err := p.Load(context.Background(), "itajai")
	assert.ErrorIs(t, err, pipeline.ErrUnknownStation)
}

func TestPipeline_Load_Errors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		f := defaultFetcher()
		f.errs = map[string]error{"cubatao": errors.New("connection refused")}
		_, err := newPipeline(f).Load(context.Background(), "cubatao")
		var fetchErr *domain.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		f := defaultFetcher()
		f.payloads["cubatao"] = "Data,Quem\n01/06/2024,Ana\n"
		_, err := newPipeline(f).Load(context.Background(), "cubatao")
		var schemaErr *domain.SchemaError
		assert.ErrorAs(t, err, &schemaErr)
	})

	t.Run("header only", func(t *testing.T) {
		f := defaultFetcher()
		f.payloads["cubatao"] = "Carimbo de data/hora,NOME,Nível do Rio (m)\n"
		p := newPipeline(f)
		_, err := p.Load(context.Background(), "cubatao")
		var empty *domain.EmptyResultError
		assert.ErrorAs(t, err, &empty)
		assert.Error(t, p.CheckReadiness(context.Background()))
	})
}

func TestPipeline_View(t *testing.T) {
	freezeClock(t, time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	p := newPipeline(defaultFetcher())

	v, err := p.View(context.Background(), "cubatao", domain.ViewRequest{
		Selection:  domain.Last(domain.PeriodLast7d),
		Mode:       domain.ModeAggregated,
		Descending: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", v.Interval.Start.String())
	assert.Equal(t, "2024-06-03", v.Interval.End.String())
	assert.Equal(t, 4, v.Summary.TotalReadings)
	assert.Equal(t, 3, v.Summary.ValidReadings)
	require.NotNil(t, v.Summary.LastLevelM)
	assert.Equal(t, 2.8, *v.Summary.LastLevelM)
	assert.Len(t, v.Aggregates, 3)
	assert.Equal(t, "Carla", v.Readings[0].Operator)
	assert.Equal(t, []domain.MonthlyRain{{Month: "2024-06", RainMM: 15.5}}, v.MonthlyRain)
}

func TestPipeline_View_NoDataInRange(t *testing.T) {
	freezeClock(t, time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	p := newPipeline(defaultFetcher())

	_, err := p.View(context.Background(), "pirai", domain.ViewRequest{Operators: []string{"Ana"}})
	var empty *domain.EmptyResultError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, domain.StageRange, empty.Stage)
}

func TestPipeline_Refresh(t *testing.T) {
	f := defaultFetcher()
	p := newPipeline(f)

	require.NoError(t, p.Refresh(context.Background(), "pirai"))
	assert.Equal(t, []string{"pirai"}, f.invalidated)

	require.NoError(t, p.RefreshAll(context.Background()))
	assert.Equal(t, []string{"pirai", "cubatao", "pirai"}, f.invalidated)

	assert.ErrorIs(t, p.Refresh(context.Background(), "nowhere"), pipeline.ErrUnknownStation)
	assert.Equal(t, []string{"cubatao", "pirai"}, p.Stations())
}

func TestPipeline_Sync(t *testing.T) {
	f := defaultFetcher()
	kafka := &recordingPublisher{name: "kafka"}
	archive := &recordingPublisher{name: "sqlite"}
	p := newPipeline(f, kafka, archive)

	require.NoError(t, p.Sync(context.Background()))

	assert.Equal(t, 2, f.freshes)
	assert.Zero(t, f.fetches, "sync must bypass the cache")
	assert.Len(t, kafka.published["cubatao"], 4)
	assert.Len(t, kafka.published["pirai"], 1)
	assert.Len(t, archive.published["cubatao"], 4)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Sync_PartialFailure(t *testing.T) {
	f := defaultFetcher()
	f.errs = map[string]error{"cubatao": errors.New("timeout")}
	good := &recordingPublisher{name: "sqlite"}
	bad := &recordingPublisher{name: "kafka", err: errors.New("broker down")}
	p := newPipeline(f, good, bad)

	err := p.Sync(context.Background())
	require.Error(t, err)

	var fetchErr *domain.FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "broker down")
	// pirai still reached the healthy sink
	assert.Len(t, good.published["pirai"], 1)
}

func TestPipeline_Sync_SkipsEmptyStations(t *testing.T) {
	f := defaultFetcher()
	f.payloads["pirai"] = "Carimbo de data/hora,NOME,Nível do Rio (m)\n"
	pub := &recordingPublisher{name: "sqlite"}

	require.NoError(t, newPipeline(f, pub).Sync(context.Background()))
	assert.Contains(t, pub.published, "cubatao")
	assert.NotContains(t, pub.published, "pirai")
}

func TestPipeline_Sync_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newPipeline(defaultFetcher()).Sync(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSheetTransformer_GViz(t *testing.T) {
	tfm := pipeline.NewTransformer(domain.FormatGViz, time.UTC, discardLogger())
	payload := `{"status":"ok","table":{"cols":[
{"id":"A","label":"Carimbo de data/hora","type":"datetime"},
{"id":"B","label":"NOME","type":"string"},
{"id":"C","label":"Nível do Rio (m)","type":"number"}],
"rows":[{"c":[{"v":"Date(2025,0,3,16,15,11)"},{"v":"Ana"},{"v":2.35}]}]}}`

	ds, err := tfm.Transform("pirai", []byte(payload))
	require.NoError(t, err)
	require.Len(t, ds.Readings, 1)
	assert.Equal(t, time.Date(2025, 1, 3, 16, 15, 11, 0, time.UTC), ds.Readings[0].Timestamp)

	_, err = tfm.Transform("pirai", []byte("<html>"))
	var fetchErr *domain.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

// counterValue gathers c on a private registry and returns the sample whose
// labels match want, or 0 when there is none.
func counterValue(t *testing.T, c prometheus.Collector, want map[string]string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if assert.ObjectsAreEqual(want, got) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPipeline_Load_SeparatesDroppedRowsFromInvalidCells(t *testing.T) {
	const sheet = `Carimbo de data/hora,NOME,Nível do Rio (m),Chuva (mm)
01/06/2024 07:00:00,Ana,sem leitura,"1,0"
01/06/2024 13:00:00,Bruno,"2,10",chuva forte
ontem,Carla,"2,00",
`
	metrics := observability.NewMetricsForTesting()
	f := &mockFetcher{payloads: map[string]string{"cubatao": sheet}}
	tfm := pipeline.NewTransformer(domain.FormatCSV, time.UTC, discardLogger())
	p := pipeline.New(f, tfm, []domain.Source{cubatao}, nil, discardLogger(), metrics)

	ds, err := p.Load(context.Background(), "cubatao")
	require.NoError(t, err)
	assert.Len(t, ds.Readings, 2, "rows with bad cells are kept")

	assert.Equal(t, 1.0, counterValue(t, metrics.RowsDropped, map[string]string{"station": "cubatao", "reason": "timestamp"}))
	assert.Equal(t, 0.0, counterValue(t, metrics.RowsDropped, map[string]string{"station": "cubatao", "reason": "level"}))
	assert.Equal(t, 1.0, counterValue(t, metrics.InvalidCells, map[string]string{"station": "cubatao", "column": "level"}))
	assert.Equal(t, 1.0, counterValue(t, metrics.InvalidCells, map[string]string{"station": "cubatao", "column": "rain"}))
	assert.Equal(t, 2.0, counterValue(t, metrics.RowsParsed, map[string]string{"station": "cubatao"}))
}
