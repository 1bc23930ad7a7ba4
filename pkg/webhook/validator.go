// Package webhook performs reachability probes against tenant-supplied
// webhook URLs before provisioning marks a tenant ready.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultProbeTimeout = 5 * time.Second

// probeMethods is the fallback cascade, tried in order until one returns 2xx.
var probeMethods = []string{http.MethodHead, http.MethodGet, http.MethodOptions}

// lenientStatuses are accepted in lenient mode: they prove the endpoint
// exists but rejects the probe method or auth.
var lenientStatuses = map[int]bool{
	http.StatusUnauthorized:     true,
	http.StatusForbidden:        true,
	http.StatusNotFound:         true,
	http.StatusMethodNotAllowed: true,
}

// Mode controls the acceptance policy for probe responses.
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeLenient Mode = "lenient"
)

// Result is the outcome of a validation run.
type Result struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code,omitempty"`
	Method     string `json:"method,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Validator probes webhook URLs with a method fallback cascade.
type Validator struct {
	client       *http.Client
	logger       *slog.Logger
	mode         Mode
	probeTimeout time.Duration
	skip         bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithMode sets the acceptance policy (strict by default).
func WithMode(mode Mode) Option {
	return func(v *Validator) {
		v.mode = mode
	}
}

// WithProbeTimeout sets the per-probe timeout.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(v *Validator) {
		v.probeTimeout = timeout
	}
}

// WithSkip forces the validator into always-ok mode for non-production
// environments. Every skipped validation is logged, never silent.
func WithSkip(skip bool) Option {
	return func(v *Validator) {
		v.skip = skip
	}
}

// WithClient overrides the HTTP client, mainly for tests.
func WithClient(client *http.Client) Option {
	return func(v *Validator) {
		v.client = client
	}
}

func NewValidator(logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{
		client:       &http.Client{},
		logger:       logger.With("module", "webhook_validator"),
		mode:         ModeStrict,
		probeTimeout: defaultProbeTimeout,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate probes the URL with HEAD, then GET, then OPTIONS, stopping at the
// first 2xx. Network failures and timeouts move on to the next method rather
// than aborting. In lenient mode 401/403/404/405 also count as reachable.
func (v *Validator) Validate(ctx context.Context, url string) Result {
	if v.skip {
		v.logger.WarnContext(ctx, "Webhook validation skipped by configuration", "url", url)

		return Result{OK: true, Reason: "validation_skipped"}
	}

	lastStatus := 0

	for _, method := range probeMethods {
		status, err := v.probe(ctx, method, url)
		if err != nil {
			v.logger.DebugContext(ctx, "Webhook probe failed", "method", method, "url", url, "error", err)

			continue
		}

		lastStatus = status

		if status >= 200 && status < 300 {
			return Result{OK: true, StatusCode: status, Method: method}
		}

		if v.mode == ModeLenient && lenientStatuses[status] {
			v.logger.InfoContext(ctx, "Webhook accepted leniently",
				"method", method, "url", url, "status", status)

			return Result{OK: true, StatusCode: status, Method: method}
		}
	}

	reason := "webhook_unreachable:timeout"
	if lastStatus != 0 {
		reason = fmt.Sprintf("webhook_unreachable:%d", lastStatus)
	}

	return Result{OK: false, StatusCode: lastStatus, Reason: reason}
}

func (v *Validator) probe(ctx context.Context, method, url string) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, v.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe request failed: %w", err)
	}

	err = resp.Body.Close()
	if err != nil {
		v.logger.DebugContext(ctx, "failed to close probe response body", "error", err)
	}

	return resp.StatusCode, nil
}
