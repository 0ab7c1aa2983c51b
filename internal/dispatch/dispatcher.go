package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sol-I/stark-ai/internal/domain"
)

const (
	// DefaultTimeout bounds a single provider attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxHistory is the number of history turns kept per request.
	DefaultMaxHistory = 20

	// maxErrorBodyBytes limits how much of a failed response body is kept
	// for diagnostics.
	maxErrorBodyBytes = 512
)

type contextKey string

const callerKey contextKey = "caller"

// WithCaller tags a context with the identity of the requesting user, for
// the request log and per-caller metrics.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the caller identity set by WithCaller, or "".
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey).(string); ok {
		return v
	}
	return ""
}

// AttemptRecord describes one finished provider attempt for observers.
type AttemptRecord struct {
	Caller           string
	Provider         string
	Model            string
	Success          bool
	ErrorKind        string
	ErrorMessage     string
	Duration         time.Duration
	PromptTokens     int
	CompletionTokens int
}

// AttemptObserver receives a record after every provider attempt,
// successful or not. Implementations must be safe for concurrent use and
// should return quickly; dispatch latency includes observer time.
type AttemptObserver interface {
	ObserveAttempt(rec AttemptRecord)
}

// ExhaustionObserver is implemented by attempt observers that also want to
// know when a dispatch ran out of candidates entirely.
type ExhaustionObserver interface {
	ObserveExhausted()
}

// AvailabilityObserver is implemented by attempt observers that track
// whether each provider is currently dispatchable.
type AvailabilityObserver interface {
	ObserveAvailability(provider string, available bool)
}

// Result is a successful dispatch outcome.
type Result struct {
	// Answer is the extracted answer text.
	Answer string

	// Provider names the provider that produced the answer.
	Provider string

	// Attempts counts providers tried, including the successful one.
	Attempts int
}

// Dispatcher sends chat requests to the best available provider and fails
// over down the candidate list when attempts fail. One instance is shared
// by all callers.
type Dispatcher struct {
	registry   *domain.Registry
	health     *domain.HealthTracker
	client     *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	maxHistory int
	policy     domain.OrderPolicy
	limiter    *rate.Limiter
	observers  []AttemptObserver
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithMaxHistory bounds how many history turns are sent per request.
func WithMaxHistory(n int) Option {
	return func(d *Dispatcher) { d.maxHistory = n }
}

// WithPolicy selects the candidate ordering policy.
func WithPolicy(p domain.OrderPolicy) Option {
	return func(d *Dispatcher) {
		if p.IsValid() {
			d.policy = p
		}
	}
}

// WithMinInterval enforces a minimum spacing between outbound provider
// requests across all callers. Zero disables pacing.
func WithMinInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithObserver registers an attempt observer. May be given multiple times.
func WithObserver(o AttemptObserver) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// NewDispatcher creates a dispatcher over the given registry and health
// tracker.
func NewDispatcher(registry *domain.Registry, health *domain.HealthTracker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		health:     health,
		client:     &http.Client{},
		logger:     slog.Default(),
		timeout:    DefaultTimeout,
		maxHistory: DefaultMaxHistory,
		policy:     domain.PolicyHealthAware,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send dispatches a chat message, trying candidate providers in order until
// one succeeds. History is truncated to the configured bound before the
// prompt is built. On total failure it returns *ExhaustedError with one
// entry per attempted provider, in attempt order.
func (d *Dispatcher) Send(ctx context.Context, message string, history domain.History) (*Result, error) {
	candidates := d.registry.CandidateOrder(d.policy)
	if len(candidates) == 0 {
		if d.registry.Len() == 0 {
			return nil, domain.ErrNoProviders
		}
		// Providers exist but all are disabled or cooling down.
		d.notifyExhausted()
		return nil, &ExhaustedError{}
	}

	prompt := buildPrompt(history.Truncate(d.maxHistory), message)
	promptTokens := EstimateTokens(prompt)
	caller := CallerFromContext(ctx)

	attempts := make([]Attempt, 0, len(candidates))
	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, ok := d.registry.Get(name)
		if !ok {
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		answer, err := d.try(ctx, p, prompt)
		elapsed := time.Since(start)

		rec := AttemptRecord{
			Caller:       caller,
			Provider:     p.Name,
			Model:        p.Model,
			Duration:     elapsed,
			PromptTokens: promptTokens,
		}

		if err == nil {
			d.health.RecordSuccess(p.Name)
			rec.Success = true
			rec.CompletionTokens = EstimateTokens(answer)
			d.notify(rec)
			d.notifyAvailability(p.Name, true)
			d.logger.Info("dispatch succeeded",
				"provider", p.Name,
				"attempts", len(attempts)+1,
				"duration_ms", elapsed.Milliseconds(),
			)
			return &Result{Answer: answer, Provider: p.Name, Attempts: len(attempts) + 1}, nil
		}

		// The caller gave up; do not penalize the provider or keep trying.
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		d.health.RecordFailure(p.Name)
		rec.ErrorKind = errorKind(err)
		rec.ErrorMessage = err.Error()
		d.notify(rec)
		d.notifyAvailability(p.Name, d.health.Available(p.Name))
		d.logger.Warn("provider attempt failed",
			"provider", p.Name,
			"error_kind", rec.ErrorKind,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		attempts = append(attempts, Attempt{Provider: p.Name, Err: err})
	}

	d.notifyExhausted()
	return nil, &ExhaustedError{Attempts: attempts}
}

// Probe sends a minimal request to one named provider, regardless of its
// health state, and records the outcome. Used by the background
// availability checker.
func (d *Dispatcher) Probe(ctx context.Context, name string) error {
	p, ok := d.registry.Get(name)
	if !ok {
		return domain.ErrNoProviders
	}

	start := time.Now()
	_, err := d.try(ctx, p, "ping")
	elapsed := time.Since(start)

	rec := AttemptRecord{
		Caller:   "probe",
		Provider: p.Name,
		Model:    p.Model,
		Duration: elapsed,
	}
	if err == nil {
		d.health.RecordSuccess(p.Name)
		rec.Success = true
	} else {
		d.health.RecordFailure(p.Name)
		rec.ErrorKind = errorKind(err)
		rec.ErrorMessage = err.Error()
	}
	d.notify(rec)
	d.notifyAvailability(p.Name, d.health.Available(p.Name))
	return err
}

// try renders, sends, and parses a single provider request under the
// per-attempt timeout.
func (d *Dispatcher) try(ctx context.Context, p *domain.ProviderConfig, prompt string) (string, error) {
	rendered, err := render(p, prompt)
	if err != nil {
		return "", err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, rendered.URL, bytes.NewReader(rendered.Body))
	if err != nil {
		return "", &TransportError{Provider: p.Name, Err: err}
	}
	for name, value := range rendered.Headers {
		req.Header.Set(name, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// Surface the attempt deadline as a timeout rather than a generic
		// transport failure.
		if attemptCtx.Err() == context.DeadlineExceeded {
			return "", context.DeadlineExceeded
		}
		return "", &TransportError{Provider: p.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Provider: p.Name, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return "", &HTTPStatusError{Provider: p.Name, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	return parseAnswer(p.Name, p.ResponseParser, body)
}

func (d *Dispatcher) notify(rec AttemptRecord) {
	for _, o := range d.observers {
		o.ObserveAttempt(rec)
	}
}

func (d *Dispatcher) notifyExhausted() {
	for _, o := range d.observers {
		if eo, ok := o.(ExhaustionObserver); ok {
			eo.ObserveExhausted()
		}
	}
}

func (d *Dispatcher) notifyAvailability(provider string, available bool) {
	for _, o := range d.observers {
		if ao, ok := o.(AvailabilityObserver); ok {
			ao.ObserveAvailability(provider, available)
		}
	}
}
