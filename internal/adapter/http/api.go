package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/adapter/excel"
	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/pipeline"
)

// viewResponse flattens the view next to a status marker so clients can
// tell data from the no-data state without inspecting the HTTP status.
type viewResponse struct {
	Status string `json:"status"`
	*domain.View
}

type errorResponse struct {
	Status  string   `json:"status"`
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Stage   string   `json:"stage,omitempty"`
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]Station{"stations": s.stations})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	req, err := parseViewRequest(r.URL.Query(), s.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: err.Error()})
		return
	}

	v, err := s.svc.View(r.Context(), r.PathValue("station"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Status: "ok", View: &v})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, err := parseViewRequest(r.URL.Query(), s.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: err.Error()})
		return
	}

	v, err := s.svc.View(r.Context(), r.PathValue("station"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.Write(&buf, v); err != nil {
		s.writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("%s_%s_%s.xlsx", v.Station, v.Interval.Start, v.Interval.End)
	w.Header().Set("Content-Type", excel.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client may have gone away
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	station := r.PathValue("station")
	if err := s.svc.Refresh(r.Context(), station); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed", "station": station})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RefreshAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// writeError maps pipeline errors onto HTTP responses. The empty-result
// state is a successful response carrying status "no_data".
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fetchErr  *domain.FetchError
		schemaErr *domain.SchemaError
		emptyErr  *domain.EmptyResultError
	)
	switch {
	case errors.As(err, &emptyErr):
		writeJSON(w, http.StatusOK, errorResponse{Status: "no_data", Error: emptyErr.Error(), Stage: emptyErr.Stage})
	case errors.Is(err, pipeline.ErrUnknownStation):
		writeJSON(w, http.StatusNotFound, errorResponse{Status: "error", Error: err.Error()})
	case errors.As(err, &fetchErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Status: "error", Error: err.Error()})
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Status: "error", Error: err.Error(), Missing: schemaErr.Missing})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "internal error"})
	}
}

// parseViewRequest reads period, start, end, mode, group_by_operator,
// operator (repeatable) and order from the query string.
func parseViewRequest(q url.Values, loc *time.Location) (domain.ViewRequest, error) {
	var req domain.ViewRequest

	period, err := domain.ParsePeriod(q.Get("period"))
	if err != nil {
		return req, err
	}
	req.Selection = domain.Last(period)
	if period == domain.PeriodCustom {
		var start, end domain.Day
		if v := q.Get("start"); v != "" {
			if start, err = domain.ParseDay(v, loc); err != nil {
				return req, fmt.Errorf("invalid start: %w", err)
			}
		}
		if v := q.Get("end"); v != "" {
			if end, err = domain.ParseDay(v, loc); err != nil {
				return req, fmt.Errorf("invalid end: %w", err)
			}
		}
		req.Selection = domain.Custom(start, end)
	}

	if req.Mode, err = domain.ParseViewMode(q.Get("mode")); err != nil {
		return req, err
	}

	if v := q.Get("group_by_operator"); v != "" {
		if req.GroupByOperator, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("invalid group_by_operator %q", v)
		}
	}

	for _, op := range q["operator"] {
		if op = strings.TrimSpace(op); op != "" {
			req.Operators = append(req.Operators, op)
		}
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
		req.Descending = true
	case "asc":
	default:
		return req, fmt.Errorf("invalid order %q: want asc or desc", q.Get("order"))
	}
	return req, nil
}
