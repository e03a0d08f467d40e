package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/providers"
)

// MockProvider is a mock implementation of providers.Provider.
type MockProvider struct {
	id          string
	ExtractFunc func(ctx context.Context, doc Document, prompt string) (string, error)
	recorder    *callRecorder
}

func (m *MockProvider) ID() string { return m.id }

func (m *MockProvider) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	if m.recorder != nil {
		m.recorder.add(m.id)
	}
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, doc, prompt)
	}
	return `{"ok": true}`, nil
}

type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *callRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.calls, ",")
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func newTestOrchestrator(t *testing.T, timeout time.Duration, ps ...*MockProvider) (*Orchestrator, *callRecorder, *sleepRecorder) {
	t.Helper()
	rec := &callRecorder{}
	sl := &sleepRecorder{}
	list := make([]providers.Provider, 0, len(ps))
	for _, p := range ps {
		p.recorder = rec
		list = append(list, p)
	}
	reg, err := providers.NewRegistry(list...)
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}
	o := New(Config{CallTimeout: timeout, Backoff: 2 * time.Second, Sleep: sl.sleep}, reg)
	return o, rec, sl
}

func fail(err error) func(context.Context, Document, string) (string, error) {
	return func(context.Context, Document, string) (string, error) { return "", err }
}

func succeed(text string) func(context.Context, Document, string) (string, error) {
	return func(context.Context, Document, string) (string, error) { return text, nil }
}

var testDoc = Document{Text: "statement text"}

func TestRun_RateLimitFallsThroughToNextProvider(t *testing.T) {
	o, rec, sl := newTestOrchestrator(t, time.Second,
		&MockProvider{id: "A", ExtractFunc: fail(&providers.StatusError{Code: 429, Body: "slow down"})},
		&MockProvider{id: "B", ExtractFunc: succeed(`{"from": "B"}`)},
		&MockProvider{id: "C", ExtractFunc: succeed(`{"from": "C"}`)},
	)

	res, err := o.Run(context.Background(), testDoc, "prompt", []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if got := rec.String(); got != "A,B" {
		t.Errorf("calls = %q, want A,B", got)
	}
	if res.Provider != "B" || res.RawText != `{"from": "B"}` {
		t.Errorf("result = %+v", res)
	}
	if len(res.Attempts) != 2 || res.Attempts[0].Outcome != OutcomeRetryable || res.Attempts[1].Outcome != OutcomeSuccess {
		t.Errorf("attempts = %+v", res.Attempts)
	}
	if sl.count() != 1 {
		t.Errorf("backoff waits = %d, want 1", sl.count())
	}
}

func TestRun_FatalErrorStopsChain(t *testing.T) {
	o, rec, sl := newTestOrchestrator(t, time.Second,
		&MockProvider{id: "A", ExtractFunc: fail(errors.New("401 unauthorized: invalid api key"))},
		&MockProvider{id: "B", ExtractFunc: succeed(`{}`)},
	)

	res, err := o.Run(context.Background(), testDoc, "prompt", []string{"A", "B"})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Retryable() || pe.Provider != "A" {
		t.Fatalf("Run() error = %v, want fatal ProviderError from A", err)
	}
	if !IsFatal(err) || IsRetryable(err) {
		t.Errorf("IsFatal/IsRetryable disagree for %v", err)
	}
	if got := rec.String(); got != "A" {
		t.Errorf("calls = %q, want only A", got)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Outcome != OutcomeFatal || res.Attempts[0].Detail == "" {
		t.Errorf("attempts = %+v", res.Attempts)
	}
	if sl.count() != 0 {
		t.Errorf("backoff waits = %d, want 0", sl.count())
	}
}

func TestRun_AllRetryableExhausts(t *testing.T) {
	o, rec, sl := newTestOrchestrator(t, time.Second,
		&MockProvider{id: "A", ExtractFunc: fail(errors.New("Error 429, Status: RESOURCE_EXHAUSTED"))},
		&MockProvider{id: "B", ExtractFunc: fail(errors.New("quota exceeded for project"))},
		&MockProvider{id: "C", ExtractFunc: fail(errors.New("rate limit reached"))},
	)

	res, err := o.Run(context.Background(), testDoc, "prompt", nil)
	var failed *ExtractionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Run() error = %v, want ExtractionFailedError", err)
	}
	if !strings.Contains(failed.Last.Error(), "rate limit reached") {
		t.Errorf("Last = %v, want C's error", failed.Last)
	}
	if len(failed.Attempts) != 3 || len(res.Attempts) != 3 {
		t.Errorf("attempts = %d/%d, want 3", len(failed.Attempts), len(res.Attempts))
	}
	if got := rec.String(); got != "A,B,C" {
		t.Errorf("calls = %q", got)
	}
	if sl.count() != 2 {
		t.Errorf("backoff waits = %d, want 2 (none after the last provider)", sl.count())
	}
}

func TestRun_TimeoutIsRetryable(t *testing.T) {
	o, rec, _ := newTestOrchestrator(t, 20*time.Millisecond,
		&MockProvider{id: "slow", ExtractFunc: func(ctx context.Context, _ Document, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}},
		&MockProvider{id: "fast", ExtractFunc: succeed(`{}`)},
	)

	res, err := o.Run(context.Background(), testDoc, "prompt", []string{"slow", "fast"})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if got := rec.String(); got != "slow,fast" {
		t.Errorf("calls = %q", got)
	}
	if res.Attempts[0].Outcome != OutcomeRetryable || !strings.Contains(res.Attempts[0].Detail, "timed out") {
		t.Errorf("first attempt = %+v, want retryable timeout", res.Attempts[0])
	}
}

func TestRun_AbandonsProviderThatIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	o, _, _ := newTestOrchestrator(t, 20*time.Millisecond,
		&MockProvider{id: "stuck", ExtractFunc: func(context.Context, Document, string) (string, error) {
			<-release
			return "too late", nil
		}},
	)

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), testDoc, "prompt", nil)
		done <- err
	}()

	select {
	case err := <-done:
		var failed *ExtractionFailedError
		var te *TimeoutError
		if !errors.As(err, &failed) || !errors.As(err, &te) {
			t.Errorf("Run() error = %v, want ExtractionFailed wrapping a timeout", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("timeout should unwrap to context.DeadlineExceeded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after the call timeout")
	}
}

func TestRun_CallerCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o, rec, _ := newTestOrchestrator(t, time.Second,
		&MockProvider{id: "A", ExtractFunc: func(ctx context.Context, _ Document, _ string) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}},
		&MockProvider{id: "B", ExtractFunc: succeed(`{}`)},
	)

	_, err := o.Run(ctx, testDoc, "prompt", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	var failed *ExtractionFailedError
	if errors.As(err, &failed) {
		t.Error("cancellation must not be reported as exhausted providers")
	}
	if got := rec.String(); got != "A" {
		t.Errorf("calls = %q, want only A", got)
	}
}

func TestRun_UnknownProviderFailsBeforeAnyCall(t *testing.T) {
	o, rec, _ := newTestOrchestrator(t, time.Second, &MockProvider{id: "A"})

	_, err := o.Run(context.Background(), testDoc, "prompt", []string{"A", "missing"})
	if !errors.Is(err, ErrUnknownProvider) || !IsFatal(err) {
		t.Fatalf("Run() error = %v, want fatal unknown provider", err)
	}
	if got := rec.String(); got != "" {
		t.Errorf("calls = %q, want none", got)
	}
}

func TestRun_EmptyListUsesRegistryOrder(t *testing.T) {
	o, rec, _ := newTestOrchestrator(t, time.Second,
		&MockProvider{id: "first", ExtractFunc: fail(errors.New("HTTP 429: too many requests"))},
		&MockProvider{id: "second"},
	)

	res, err := o.Run(context.Background(), testDoc, "prompt", nil)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if res.Provider != "second" || rec.String() != "first,second" {
		t.Errorf("provider = %q, calls = %q", res.Provider, rec.String())
	}
}

func TestRun_ConcurrentIndependentDocuments(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, time.Second,
		&MockProvider{id: "echo", ExtractFunc: func(_ context.Context, doc Document, _ string) (string, error) {
			return doc.Text, nil
		}},
	)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("doc-%d", i)
			res, err := o.Run(context.Background(), Document{Text: want}, "prompt", nil)
			if err != nil {
				errs <- err
				return
			}
			if res.RawText != want {
				errs <- fmt.Errorf("got %q, want %q", res.RawText, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeSuccess},
		{"status 429", fmt.Errorf("ollama: %w", &providers.StatusError{Code: 429}), OutcomeRetryable},
		{"status 500", &providers.StatusError{Code: 500, Body: "internal error"}, OutcomeFatal},
		{"status 503 overloaded", &providers.StatusError{Code: 503, Body: "model overloaded"}, OutcomeFatal},
		{"gemini resource exhausted", errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED"), OutcomeRetryable},
		{"quota", errors.New("You exceeded your current quota"), OutcomeRetryable},
		{"rate limit", errors.New("Rate limit exceeded"), OutcomeRetryable},
		{"rate-limit", errors.New("rate-limited by upstream"), OutcomeRetryable},
		{"timeout", &TimeoutError{After: time.Second}, OutcomeRetryable},
		{"auth", errors.New("403 permission denied"), OutcomeFatal},
		{"number containing 429", errors.New("document 14290 is malformed"), OutcomeFatal},
		{"bad request", errors.New("400 invalid argument"), OutcomeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestAwait_ReplyRacingDeadline(t *testing.T) {
	o := New(Config{CallTimeout: time.Millisecond}, nil)

	tests := []struct {
		name       string
		reply      *reply
		cancelCall bool
		wantText   string
		wantErr    error
		wantTO     bool
	}{
		{name: "SuccessBufferedAtDeadline", reply: &reply{text: `{"late": true}`}, wantText: `{"late": true}`},
		{name: "ErrorBufferedAtDeadline", reply: &reply{err: context.DeadlineExceeded}, wantTO: true},
		{name: "NothingBuffered", wantTO: true},
		{name: "CallerCancelled", cancelCall: true, wantErr: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			callCtx, callCancel := context.WithTimeout(ctx, time.Nanosecond)
			defer callCancel()
			<-callCtx.Done()
			if tt.cancelCall {
				cancel()
			}

			ch := make(chan reply, 1)
			if tt.reply != nil {
				ch <- *tt.reply
			}

			text, err := o.await(ctx, callCtx, ch)
			var te *TimeoutError
			switch {
			case tt.wantTO:
				if !errors.As(err, &te) {
					t.Errorf("await() error = %v, want *TimeoutError", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("await() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil || text != tt.wantText {
					t.Errorf("await() = (%q, %v), want (%q, nil)", text, err, tt.wantText)
				}
			}
		})
	}
}
