// Command inspect runs a saved sheet export through the normalizer, range
// selector and aggregator offline and prints the resulting view as JSON. It
// is the quickest way to check why a dashboard shows what it shows.
//
// Usage:
//
//	go run ./cmd/inspect \
//	  -file testdata/cubatao.csv \
//	  -period 30d -mode aggregated -by-operator \
//	  -now 2024-03-31T12:00:00-03:00
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// report is what inspect prints.
type report struct {
	File    string                `json:"file"`
	Format  domain.Format         `json:"format"`
	Stats   domain.NormalizeStats `json:"stats"`
	Dropped []string              `json:"dropped,omitempty"`
	Status  string                `json:"status"`
	Error   string                `json:"error,omitempty"`
	View    *domain.View          `json:"view,omitempty"`
}

func main() {
	file := flag.String("file", "", "path to a CSV or gviz JSON export")
	format := flag.String("format", "", "csv or gviz (default: from file extension)")
	station := flag.String("station", "local", "station id reported in the view")
	period := flag.String("period", "", "custom, 24h, 7d, 30d or 1y")
	start := flag.String("start", "", "custom range start, YYYY-MM-DD")
	end := flag.String("end", "", "custom range end, YYYY-MM-DD")
	mode := flag.String("mode", "detailed", "detailed or aggregated")
	byOperator := flag.Bool("by-operator", false, "aggregate per operator")
	tz := flag.String("tz", "America/Sao_Paulo", "timezone the sheet timestamps are written in")
	now := flag.String("now", "", "RFC3339 time used as \"now\" for relative periods")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	opts := options{
		file: *file, format: *format, station: *station,
		period: *period, start: *start, end: *end, mode: *mode,
		byOperator: *byOperator, tz: *tz, now: *now,
	}
	if code := run(opts, os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

type options struct {
	file, format, station    string
	period, start, end, mode string
	byOperator               bool
	tz, now                  string
}

func run(opts options, stdout, stderr io.Writer) int {
	loc, err := time.LoadLocation(opts.tz)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: timezone %q: %v\n", opts.tz, err)
		return 1
	}

	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: -now: %v\n", err)
			return 1
		}
		domain.SetClock(clockwork.NewFakeClockAt(t))
		defer domain.SetClock(nil)
	}

	format, err := resolveFormat(opts.format, opts.file)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}
	req, err := buildRequest(opts, loc)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	raw, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: read %s: %v\n", opts.file, err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	rep := inspect(raw, opts.file, opts.station, format, loc, req, logger)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(stderr, "FATAL: encode report: %v\n", err)
		return 1
	}
	if rep.Status == "error" {
		return 1
	}
	return 0
}

func inspect(raw []byte, file, station string, format domain.Format, loc *time.Location, req domain.ViewRequest, logger *slog.Logger) report {
	rep := report{File: file, Format: format, Status: "ok"}

	ds, err := pipeline.NewTransformer(format, loc, logger).Transform(station, raw)
	rep.Stats = ds.Stats
	for _, d := range ds.Stats.Dropped {
		rep.Dropped = append(rep.Dropped, d.Error())
	}
	if err == nil {
		var v domain.View
		v, err = domain.BuildView(ds, req, domain.Now())
		if err == nil {
			rep.View = &v
		}
	}

	var empty *domain.EmptyResultError
	switch {
	case err == nil:
	case errors.As(err, &empty):
		rep.Status = "no_data"
		rep.Error = err.Error()
	default:
		rep.Status = "error"
		rep.Error = err.Error()
	}
	return rep
}

func resolveFormat(flagValue, file string) (domain.Format, error) {
	if flagValue != "" {
		return domain.ParseFormat(flagValue)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json", ".js":
		return domain.FormatGViz, nil
	default:
		return domain.FormatCSV, nil
	}
}

func buildRequest(opts options, loc *time.Location) (domain.ViewRequest, error) {
	var req domain.ViewRequest

	p, err := domain.ParsePeriod(opts.period)
	if err != nil {
		return req, err
	}
	req.Selection = domain.Last(p)
	if p == domain.PeriodCustom {
		var s, e domain.Day
		if opts.start != "" {
			if s, err = domain.ParseDay(opts.start, loc); err != nil {
				return req, err
			}
		}
		if opts.end != "" {
			if e, err = domain.ParseDay(opts.end, loc); err != nil {
				return req, err
			}
		}
		req.Selection = domain.Custom(s, e)
	}

	if req.Mode, err = domain.ParseViewMode(opts.mode); err != nil {
		return req, err
	}
	req.GroupByOperator = opts.byOperator
	return req, nil
}
