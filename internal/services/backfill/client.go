package backfill

import (
	"context"
	"fmt"
	"time"

	pkghttp "VolStack/pkg/http"
	applogger "VolStack/pkg/logger"
	"VolStack/pkg/util"
)

// Client triggers the external acquisition service over HTTP. The request
// carries a date-granularity range; a 2xx response means the rows are in
// the store, anything else is a plain failure with no partial-success
// protocol.
type Client struct {
	http    *pkghttp.Client
	baseURL string
	l       *applogger.Logger
}

type request struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func New(baseURL string, timeout time.Duration, l *applogger.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backfill: base URL is required")
	}
	return &Client{
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		baseURL: baseURL,
		l:       l,
	}, nil
}

// Backfill asks the acquisition service to (re)load the [from, to] range.
func (c *Client) Backfill(ctx context.Context, from, to time.Time) error {
	start := time.Now()
	body := request{
		From: util.FormatDate(from),
		To:   util.FormatDate(to),
	}

	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    c.baseURL + "/sync",
		Body:   body,
	}, nil)
	if err != nil {
		if c.l != nil {
			c.l.Error("backfill request failed",
				applogger.String("from", body.From),
				applogger.String("to", body.To),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("backfill %s..%s: %w", body.From, body.To, err)
	}

	if c.l != nil {
		c.l.Info("backfill completed",
			applogger.String("from", body.From),
			applogger.String("to", body.To),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}
