package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/infra/metrics"
	"tg-downloader-bot/internal/infra/retry"
)

// DefaultUserAgent передаётся во все запросы к апстримам.
const DefaultUserAgent = "VideoDownloaderBot/1.0"

const maxBodyBytes = 4 << 20

// StatusError описывает неуспешный HTTP-ответ апстрима.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client выполняет GET-запросы к апстримам с повторами.
type Client struct {
	http      *http.Client
	userAgent string
	policy    retry.Policy
	log       zerolog.Logger
}

// Config задаёт таймаут одной попытки и политику повторов.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

// New создаёт клиент.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		policy:    cfg.Retry,
		log:       logger,
	}
}

// GetJSON выполняет GET с параметрами query и декодирует JSON в out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	target, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	body, err := retry.Do(ctx, c.log.With().Str("host", target.Host).Logger(), c.policy, func(ctx context.Context) ([]byte, error) {
		data, err := c.get(ctx, target)
		metrics.IncUpstreamAttempt(err)
		return data, err
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target *url.URL) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("upstream", "get", target.Host, start, err)
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err == nil && resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		err = &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}
	metrics.ObserveNetworkRequest("upstream", "get", target.Host, start, err)
	if err != nil {
		return nil, err
	}
	return data, nil
}
