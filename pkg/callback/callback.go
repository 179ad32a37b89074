// Package callback POSTs finished pipeline results to caller-supplied URLs.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/sony/gobreaker/v2"

	"github.com/voicetyped/voicequery/pkg/events"
	"github.com/voicetyped/voicequery/pkg/urlvalidation"
)

const maxBreakers = 1000

// Payload is the JSON body sent to a callback URL.
type Payload struct {
	Event      string          `json:"event"`
	RequestID  string          `json:"request_id"`
	Transcript string          `json:"transcript"`
	Query      json.RawMessage `json:"query,omitempty"`
}

// Config holds delivery settings.
type Config struct {
	Secret         string
	MaxAttempts    int
	Timeout        time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// FailThreshold is the number of consecutive failures that open a
	// host's breaker.
	FailThreshold uint32
	ResetTimeout  time.Duration
}

// DefaultConfig returns the settings used by the service.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		Timeout:        10 * time.Second,
		BackoffInitial: time.Second,
		BackoffMax:     30 * time.Second,
		FailThreshold:  5,
		ResetTimeout:   30 * time.Second,
	}
}

// permanentError marks a response that must not be retried.
type permanentError struct {
	status int
	err    error
}

func (e *permanentError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("callback returned HTTP %d", e.status)
}

// Deliverer sends callbacks with retries and a circuit breaker per host.
type Deliverer struct {
	httpClient   *http.Client
	config       Config
	publisher    *events.Publisher
	pool         workerpool.WorkerPool
	validateOpts []urlvalidation.Option

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewDeliverer creates a deliverer. publisher and pool may be nil.
func NewDeliverer(cfg Config, publisher *events.Publisher, pool workerpool.WorkerPool, validateOpts ...urlvalidation.Option) *Deliverer {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = def.BackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = def.FailThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &Deliverer{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		config:       cfg,
		publisher:    publisher,
		pool:         pool,
		validateOpts: validateOpts,
		breakers:     make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

// Validate checks a callback URL before a request is accepted.
func (d *Deliverer) Validate(ctx context.Context, rawURL string) error {
	return urlvalidation.ValidateCallbackURL(ctx, rawURL, d.validateOpts...)
}

// Dispatch delivers in the background on the worker pool. ctx should be
// detached from the inbound request.
func (d *Deliverer) Dispatch(ctx context.Context, target string, p Payload) {
	job := func() {
		if err := d.Deliver(ctx, target, p); err != nil {
			slog.WarnContext(ctx, "callback delivery failed",
				slog.String("url", target),
				slog.String("request_id", p.RequestID),
				slog.String("error", err.Error()))
		}
	}
	if d.pool == nil {
		go job()
		return
	}
	if err := d.pool.Submit(ctx, job); err != nil {
		slog.WarnContext(ctx, "callback pool full, dropping delivery",
			slog.String("request_id", p.RequestID))
	}
}

// Deliver POSTs p to target, retrying transient failures with exponential
// backoff.
func (d *Deliverer) Deliver(ctx context.Context, target string, p Payload) error {
	if err := d.Validate(ctx, target); err != nil {
		return fmt.Errorf("callback URL validation: %w", err)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	cb := d.breaker(target)
	backoff := d.config.BackoffInitial

	var status int
	for attempt := 1; ; attempt++ {
		status, err = cb.Execute(func() (int, error) {
			return d.post(ctx, target, p, body)
		})
		if err == nil {
			d.emit(ctx, events.CallbackDelivered, p.RequestID, events.CallbackData{URL: target, StatusCode: status})
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) || errors.Is(err, gobreaker.ErrOpenState) || attempt >= d.config.MaxAttempts {
			break
		}

		slog.DebugContext(ctx, "retrying callback",
			slog.String("url", target),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
		backoff *= 2
		if backoff > d.config.BackoffMax {
			backoff = d.config.BackoffMax
		}
	}

	d.emit(ctx, events.CallbackFailed, p.RequestID, events.CallbackData{URL: target, StatusCode: status, Error: err.Error()})
	return err
}

func (d *Deliverer) post(ctx context.Context, target string, p Payload, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, &permanentError{err: fmt.Errorf("create callback request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Voicequery-Event", p.Event)
	req.Header.Set("X-Voicequery-Delivery", p.RequestID)
	if d.config.Secret != "" {
		now := time.Now()
		req.Header.Set(TimestampHeader, strconv.FormatInt(now.Unix(), 10))
		req.Header.Set(SignatureHeader, Sign(d.config.Secret, now, body))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()
	// Drain for connection reuse.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, fmt.Errorf("callback returned HTTP %d", resp.StatusCode)
	default:
		return resp.StatusCode, &permanentError{status: resp.StatusCode}
	}
}

func (d *Deliverer) breaker(target string) *gobreaker.CircuitBreaker[int] {
	host := target
	if u, err := url.Parse(target); err == nil {
		host = u.Host
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[host]; ok {
		return cb
	}
	if len(d.breakers) >= maxBreakers {
		for k := range d.breakers {
			delete(d.breakers, k)
			break
		}
	}

	threshold := d.config.FailThreshold
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     d.config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var perm *permanentError
			return err == nil || errors.As(err, &perm)
		},
	})
	d.breakers[host] = cb
	return cb
}

func (d *Deliverer) emit(ctx context.Context, et events.EventType, requestID string, data events.CallbackData) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Emit(ctx, et, requestID, data); err != nil {
		slog.WarnContext(ctx, "emit callback event", slog.String("error", err.Error()))
	}
}
