// Package extraction runs a document through an ordered list of inference
// providers and turns the first successful response into typed records.
package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/logger"
	"github.com/dvloznov/finance-analyzer/internal/providers"
)

// Document is the payload sent to every provider in the chain.
type Document = providers.Document

const (
	DefaultCallTimeout = 30 * time.Second
	DefaultBackoff     = 2 * time.Second
)

// Outcome is the classified result of one provider call.
type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeRetryable Outcome = "RETRYABLE_FAILURE"
	OutcomeFatal     Outcome = "FATAL_FAILURE"
)

// Attempt records one provider call made during a run.
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  Outcome       `json:"outcome"`
	RawText  string        `json:"rawResponseText,omitempty"`
	Detail   string        `json:"errorDetail,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Result is the outcome of a run. Provider and RawText are set on success;
// Attempts lists every call made, in order.
type Result struct {
	Provider string    `json:"provider,omitempty"`
	RawText  string    `json:"-"`
	Attempts []Attempt `json:"attempts"`
}

// Config controls the orchestrator. Zero durations select the defaults.
type Config struct {
	CallTimeout time.Duration
	Backoff     time.Duration

	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator is immutable after New and safe for concurrent runs.
type Orchestrator struct {
	cfg      Config
	registry *providers.Registry
}

// New creates an orchestrator over registry.
func New(cfg Config, registry *providers.Registry) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Orchestrator{cfg: cfg, registry: registry}
}

// Run calls the providers named in ids strictly in order and returns the
// first successful response. A retryable failure waits for the backoff and
// moves on; a fatal failure stops the run. With every provider exhausted the
// error is *ExtractionFailedError. An empty ids uses the registry order.
//
// The returned Result is never nil; on failure it holds the attempts made.
func (o *Orchestrator) Run(ctx context.Context, doc Document, prompt string, ids []string) (*Result, error) {
	log := logger.FromContext(ctx)
	res := &Result{}

	if len(ids) == 0 {
		ids = o.registry.IDs()
	}
	if len(ids) == 0 {
		return res, ErrNoProviders
	}

	chain := make([]providers.Provider, 0, len(ids))
	for _, id := range ids {
		p, ok := o.registry.Get(id)
		if !ok {
			return res, &ProviderError{Provider: id, Outcome: OutcomeFatal, Err: ErrUnknownProvider}
		}
		chain = append(chain, p)
	}

	var last error
	for i, p := range chain {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("Run: %w", err)
		}

		start := time.Now()
		text, err := o.call(ctx, p, doc, prompt)
		attempt := Attempt{Provider: ids[i], Duration: time.Since(start)}

		if err == nil {
			attempt.Outcome = OutcomeSuccess
			attempt.RawText = text
			res.Attempts = append(res.Attempts, attempt)
			res.Provider = ids[i]
			res.RawText = text

			log.Debug().
				Str("provider", ids[i]).
				Str("outcome", string(OutcomeSuccess)).
				Dur("duration", attempt.Duration).
				Msg("Provider call succeeded")
			return res, nil
		}

		// The caller gave up; not the provider's fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("Run: %w", ctxErr)
		}

		outcome := Classify(err)
		attempt.Outcome = outcome
		attempt.Detail = err.Error()
		res.Attempts = append(res.Attempts, attempt)
		perr := &ProviderError{Provider: ids[i], Outcome: outcome, Err: err}

		log.Warn().
			Err(err).
			Str("provider", ids[i]).
			Str("outcome", string(outcome)).
			Dur("duration", attempt.Duration).
			Msg("Provider call failed")

		if outcome == OutcomeFatal {
			return res, perr
		}
		last = perr

		if i < len(chain)-1 {
			if err := o.cfg.Sleep(ctx, o.cfg.Backoff); err != nil {
				return res, fmt.Errorf("Run: backoff: %w", err)
			}
		}
	}

	return res, &ExtractionFailedError{Attempts: res.Attempts, Last: last}
}

type reply struct {
	text string
	err  error
}

// call runs one provider under the per-call deadline. When the deadline
// passes first the call is abandoned; its goroutine sees a cancelled context
// and its late reply is dropped.
func (o *Orchestrator) call(ctx context.Context, p providers.Provider, doc Document, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	ch := make(chan reply, 1)
	go func() {
		text, err := p.Extract(callCtx, doc, prompt)
		ch <- reply{text: text, err: err}
	}()
	return o.await(ctx, callCtx, ch)
}

// await waits for the reply on ch or the end of callCtx. A successful reply
// that is already buffered when the deadline fires still wins.
func (o *Orchestrator) await(ctx, callCtx context.Context, ch <-chan reply) (string, error) {
	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
			return "", &TimeoutError{After: o.cfg.CallTimeout}
		}
		return r.text, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		select {
		case r := <-ch:
			if r.err == nil {
				return r.text, nil
			}
		default:
		}
		return "", &TimeoutError{After: o.cfg.CallTimeout}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
