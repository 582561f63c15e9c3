package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"photo-intake-bot/internal/pkg/config"
	"photo-intake-bot/internal/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
)

type Lookup interface {
	Lookup(ctx context.Context, orderNumber string) (*Resolution, error)
}

// NormalizeOrderNumber drops every whitespace rune. Numbers are often dictated or scanned
// with stray spaces in them.
func NormalizeOrderNumber(raw string) (string, error) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if normalized == "" {
		return "", ErrEmptyOrderNumber
	}
	return normalized, nil
}

type HTTPLookup struct {
	endpoint   string
	client     *http.Client
	maxRetries uint64
}

func NewHTTPLookup(cfg *config.LookupCfg, client *http.Client) *HTTPLookup {
	return &HTTPLookup{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		client:     client,
		maxRetries: cfg.MaxRetries,
	}
}

func (h *HTTPLookup) Lookup(ctx context.Context, orderNumber string) (*Resolution, error) {
	number, err := NormalizeOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}

	var resp lookupResponse
	operation := func() error {
		r, err := h.fetch(ctx, number)
		if err != nil {
			return err
		}
		resp = *r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackoff(), h.maxRetries),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		slog.Warn("Retrying order lookup", "order", number, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if !resp.Result {
		metrics.LookupsTotal.WithLabelValues("not_found").Inc()
		slog.Info("Order not found", "order", number, "info", resp.Info)
		return nil, ErrOrderNotFound
	}
	if resp.Quantity <= 0 || resp.Path == "" {
		metrics.LookupsTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: quantity=%d path=%q", ErrMalformedResponse, resp.Quantity, resp.Path)
	}

	metrics.LookupsTotal.WithLabelValues("ok").Inc()
	return &Resolution{
		OrderNumber: number,
		Quantity:    resp.Quantity,
		Path:        resp.Path,
	}, nil
}

// fetch performs one request. Errors that retrying cannot fix are wrapped as permanent.
func (h *HTTPLookup) fetch(ctx context.Context, number string) (*lookupResponse, error) {
	link := h.endpoint + "/" + url.PathEscape(number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, backoff.Permanent(&LookupError{Err: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&LookupError{Err: err})
		}
		return nil, &LookupError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		lookupErr := &LookupError{Status: resp.StatusCode, Err: errors.New(resp.Status)}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, lookupErr
		}
		return nil, backoff.Permanent(lookupErr)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	return &body, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
