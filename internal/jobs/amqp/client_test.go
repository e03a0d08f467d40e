package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp091.Publishing
	publishErr error
	deliveries chan amqp091.Delivery
	prefetch   int
}


func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp091.Delivery, 10)}
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	if exchange != "jobs" || key != "extract" {
		return fmt.Errorf("unexpected route %s/%s", exchange, key)
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp091.Table) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) publishedJobs(t *testing.T) []*jobs.ExtractDocumentJob {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*jobs.ExtractDocumentJob
	for _, p := range f.published {
		var j jobs.ExtractDocumentJob
		if err := json.Unmarshal(p.Body, &j); err != nil {
			t.Fatalf("published body is not a job: %v", err)
		}
		out = append(out, &j)
	}
	return out
}

// fakeAck records the acknowledgement of one delivery.
type fakeAck struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
	done    chan struct{}
}

func newFakeAck() *fakeAck { return &fakeAck{done: make(chan struct{})} }

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	close(a.done)
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked, a.requeue = true, requeue
	close(a.done)
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func delivery(t *testing.T, ack *fakeAck, job *jobs.ExtractDocumentJob) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return amqp091.Delivery{Acknowledger: ack, Body: body}
}

func TestClient_PublishExtractDocument(t *testing.T) {
	ch := newFakeChannel()
	c := newClient(ch, "jobs", "extract", 1)

	job := &jobs.ExtractDocumentJob{GCSURI: "gs://b/r.jpg", Kind: textparse.KindReceipt, Providers: []string{"ollama:llava"}}
	if err := c.PublishExtractDocument(context.Background(), job); err != nil {
		t.Fatalf("PublishExtractDocument() unexpected error: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp091.Persistent || msg.ContentType != "application/json" || msg.MessageId != job.JobID {
		t.Errorf("publishing = %+v", msg)
	}
	got := ch.publishedJobs(t)[0]
	if got.GCSURI != job.GCSURI || got.Kind != textparse.KindReceipt || got.MaxRetries != jobs.DefaultMaxRetries || got.Providers[0] != "ollama:llava" {
		t.Errorf("published job = %+v", got)
	}

	_ = c.Close()
	if err := c.PublishExtractDocument(context.Background(), job); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("publish after Close() error = %v, want ErrQueueClosed", err)
	}
}

func TestClient_HandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		job         *jobs.ExtractDocumentJob
		handlerErr  error
		publishErr  error
		wantAck     bool
		wantRequeue bool
		wantRetry   int
	}{
		{name: "Success", job: &jobs.ExtractDocumentJob{GCSURI: "gs://b/a.pdf"}, wantAck: true, wantRetry: -1},
		{name: "MalformedBody", body: []byte("{not json"), wantRetry: -1},
		{name: "MissingURI", body: []byte(`{"job_id":"x"}`), wantRetry: -1},
		{
			name:       "PermanentError",
			job:        &jobs.ExtractDocumentJob{GCSURI: "gs://b/a.pdf", MaxRetries: 3},
			handlerErr: jobs.Permanent(errors.New("duplicate document")),
			wantRetry:  -1,
		},
		{
			name:       "RetryableRepublished",
			job:        &jobs.ExtractDocumentJob{JobID: "j1", GCSURI: "gs://b/a.pdf", MaxRetries: 3, RetryCount: 1},
			handlerErr: errors.New("429 rate limit"),
			wantAck:    true,
			wantRetry:  2,
		},
		{
			name:       "RetriesExhausted",
			job:        &jobs.ExtractDocumentJob{GCSURI: "gs://b/a.pdf", MaxRetries: 3, RetryCount: 3},
			handlerErr: errors.New("429 rate limit"),
			wantRetry:  -1,
		},
		{
			name:        "RepublishFailsRequeues",
			job:         &jobs.ExtractDocumentJob{GCSURI: "gs://b/a.pdf", MaxRetries: 3},
			handlerErr:  errors.New("timeout"),
			publishErr:  errors.New("channel closed"),
			wantRequeue: true,
			wantRetry:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newFakeChannel()
			ch.publishErr = tt.publishErr
			c := newClient(ch, "jobs", "extract", 1)

			ack := newFakeAck()
			d := amqp091.Delivery{Acknowledger: ack, Body: tt.body}
			if tt.job != nil {
				d = delivery(t, ack, tt.job)
			}

			called := false
			c.handleDelivery(context.Background(), d, func(_ context.Context, job jobs.Job) error {
				called = true
				if job.GetStatus() != jobs.JobStatusRunning {
					t.Errorf("handler job status = %s", job.GetStatus())
				}
				return tt.handlerErr
			})

			if called != (tt.job != nil) {
				t.Errorf("handler called = %v", called)
			}
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && (!ack.nacked || ack.requeue != tt.wantRequeue) {
				t.Errorf("nacked = %v requeue = %v, want requeue %v", ack.nacked, ack.requeue, tt.wantRequeue)
			}

			republished := ch.publishedJobs(t)
			if tt.wantRetry < 0 {
				if len(republished) != 0 {
					t.Errorf("unexpected republish: %+v", republished)
				}
				return
			}
			if len(republished) != 1 || republished[0].RetryCount != tt.wantRetry || republished[0].JobID != tt.job.JobID {
				t.Fatalf("republished = %+v", republished)
			}
			if republished[0].Status != jobs.JobStatusPending || republished[0].Error == "" {
				t.Errorf("retry job = %+v", republished[0])
			}
		})
	}
}

func TestClient_StartConsumesWithWorkers(t *testing.T) {
	ch := newFakeChannel()
	c := newClient(ch, "jobs", "extract", 2)
	defer c.Close()

	seen := make(chan string, 2)
	err := c.Start(context.Background(), func(_ context.Context, job jobs.Job) error {
		seen <- job.(*jobs.ExtractDocumentJob).GCSURI
		return nil
	})
	if err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	if ch.prefetch != 2 {
		t.Errorf("prefetch = %d, want 2", ch.prefetch)
	}
	if err := c.Start(context.Background(), nil); err == nil {
		t.Error("second Start() should fail")
	}

	acks := []*fakeAck{newFakeAck(), newFakeAck()}
	ch.deliveries <- delivery(t, acks[0], &jobs.ExtractDocumentJob{GCSURI: "gs://b/1.pdf"})
	ch.deliveries <- delivery(t, acks[1], &jobs.ExtractDocumentJob{GCSURI: "gs://b/2.pdf"})

	for _, a := range acks {
		select {
		case <-a.done:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery was not acknowledged")
		}
	}
	if len(seen) != 2 {
		t.Errorf("handled %d jobs, want 2", len(seen))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed", amqp091.ErrClosed, true},
		{"auth failure", errors.New("Exception (403) Reason: \"username or password not allowed\""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
