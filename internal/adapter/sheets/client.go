package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/observability"
	"github.com/go-resty/resty/v2"
)

// cacheKey identifies a tab's export in the fetch cache.
func cacheKey(src domain.Source, format domain.Format) string {
	return fmt.Sprintf("%s|%s|%s", src.SheetID, src.GID, format)
}

// errNotPublic is returned when the export endpoint answers with an HTML
// page, which is what Google serves for sheets that are not shared publicly.
var errNotPublic = errors.New("export returned HTML; is the sheet shared publicly?")

// Client downloads raw sheet exports over HTTP.
type Client struct {
	http    *resty.Client
	format  domain.Format
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a sheets export client. retries is the number of extra
// attempts after a transport failure or 5xx response.
func NewClient(baseURL string, format domain.Format, timeout time.Duration, retries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("User-Agent", "hydromon/1.0")

	return &Client{
		http:    http,
		format:  format,
		metrics: metrics,
		logger:  logger,
	}
}

// Format returns the wire format this client requests.
func (c *Client) Format() domain.Format { return c.format }

// Fetch downloads the tab's export. Any failure is returned as
// *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	start := time.Now()
	body, err := c.doRequest(ctx, src)
	c.metrics.FetchDuration.WithLabelValues(src.Station).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(src.Station, "error").Inc()
		c.logger.Warn("sheet fetch failed", "station", src.Station, "error", err)
		return nil, &domain.FetchError{Station: src.Station, Err: err}
	}
	c.metrics.FetchRequests.WithLabelValues(src.Station, "success").Inc()
	c.logger.Debug("sheet fetched", "station", src.Station, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, src domain.Source) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("sheet", src.SheetID)

	var (
		resp *resty.Response
		err  error
	)
	switch c.format {
	case domain.FormatGViz:
		resp, err = req.
			SetQueryParams(map[string]string{"tqx": "out:json", "gid": src.GID}).
			Get("/{sheet}/gviz/tq")
	default:
		resp, err = req.
			SetQueryParams(map[string]string{"format": "csv", "gid": src.GID}).
			Get("/{sheet}/export")
	}
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header().Get("Content-Type")); mt == "text/html" {
		return nil, errNotPublic
	}
	return resp.Body(), nil
}
