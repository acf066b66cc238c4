// Command genmock writes a synthetic station log in the layout of the
// operators' form-response sheet, for local development against a file or a
// stub HTTP server. Output is deterministic for a given seed and end date,
// and deliberately includes the malformed cells real sheets accumulate.
//
// Usage:
//
//	go run ./cmd/genmock -station cubatao -days 90 -out data/mock/cubatao.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixedEnd is the default last day, so fixtures do not drift between runs.
var fixedEnd = time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)

var (
	operators      = []string{"Ana Souza", "Bruno Lima", "Carla Mendes", "Diego Alves"}
	siltingLabels  = []string{"Normal", "Normal", "Normal", "Atenção", "Crítico"}
	intakeLabels   = []string{"Limpo", "Limpo", "Parcialmente obstruído", "Obstruído"}
	readingsPerDay = []int{7, 13, 19}
)

type genOptions struct {
	station string
	days    int
	seed    uint64
	end     time.Time
	loc     *time.Location
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output CSV path (default stdout)")
	station := flag.String("station", "cubatao", "cubatao (silting column) or pirai (intake column)")
	days := flag.Int("days", 60, "number of days to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	today := flag.Bool("today", false, "end on the current day instead of the fixed fixture date")
	tz := flag.String("tz", "America/Sao_Paulo", "timezone of generated timestamps")
	flag.Parse()

	if *station != "cubatao" && *station != "pirai" {
		return fmt.Errorf("unknown station %q", *station)
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive")
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", *tz, err)
	}

	var clock clockwork.Clock = clockwork.NewFakeClockAt(fixedEnd)
	if *today {
		clock = clockwork.NewRealClock()
	}

	opts := genOptions{station: *station, days: *days, seed: *seed, end: clock.Now().In(loc), loc: loc}

	var w io.Writer = os.Stdout
	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	n, err := generate(w, opts)
	if err != nil {
		return err
	}
	log.Printf("%s: %d rows over %d days ending %s", *station, n, *days, opts.end.Format("2006-01-02"))
	return nil
}

// generate writes the header and rows, returning the number of data rows.
func generate(w io.Writer, opts genOptions) (int, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	cw := csv.NewWriter(w)

	schema := domain.DefaultSchema
	statusCol, labels := schema.Silting, siltingLabels
	if opts.station == "pirai" {
		statusCol, labels = schema.Intake, intakeLabels
	}
	if err := cw.Write([]string{schema.Timestamp, schema.Operator, schema.RiverLevel, schema.Rain, statusCol}); err != nil {
		return 0, err
	}

	first := domain.DayOf(opts.end).AddDays(-(opts.days - 1))
	rows := 0
	for i := range opts.days {
		day := first.AddDays(i).Time()
		for slot, hour := range readingsPerDay {
			ts := time.Date(day.Year(), day.Month(), day.Day(), hour, rng.IntN(60), rng.IntN(60), 0, opts.loc)
			level := 2.0 + 0.8*math.Sin(float64(i)/9) + rng.Float64()*0.3

			row := []string{
				ts.Format("02/01/2006 15:04:05"),
				operators[(i+slot)%len(operators)],
				formatDecimal(level, 2),
				"",
				labels[rng.IntN(len(labels))],
			}
			if rng.IntN(4) == 0 {
				row[3] = formatDecimal(rng.Float64()*40, 1)
			}
			corrupt(row, rng, i, slot)

			if err := cw.Write(row); err != nil {
				return rows, err
			}
			rows++
		}
	}
	cw.Flush()
	return rows, cw.Error()
}

// corrupt injects the irregular cells seen on real sheets: unit suffixes,
// the zero sentinel, free text in numeric columns, and the odd timestamp
// nobody can parse.
func corrupt(row []string, rng *rand.Rand, day, slot int) {
	switch {
	case day%17 == 3 && slot == 0:
		row[0] = "ontem à tarde"
	case day%11 == 5 && slot == 1:
		row[2] = "0"
	case day%13 == 7 && slot == 2:
		row[2] = "sem leitura"
	case day%5 == 0 && slot == 1:
		row[2] += " m"
	case day%7 == 2 && slot == 2 && row[3] != "":
		row[3] += " mm"
	case rng.IntN(50) == 0:
		row[2] = ""
	}
}

// formatDecimal renders v with a comma separator, as the pt-BR forms do.
func formatDecimal(v float64, prec int) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', prec, 64), ".", ",", 1)
}
