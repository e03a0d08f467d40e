// Package amqp carries extraction jobs over RabbitMQ: a durable direct
// exchange with one durable queue bound by its own name.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/logger"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
	dialAttempts   = 5
)

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Client publishes and consumes ExtractDocumentJob messages.
type Client struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	queueName    string
	workers      int

	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	publish sync.Mutex
}

// NewClient dials url, retrying connection errors with exponential backoff,
// and declares the exchange, queue and binding. workers bounds concurrent
// handlers when consuming.
func NewClient(ctx context.Context, url, exchangeName, queueName string, workers int) (*Client, error) {
	conn, err := dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, exchangeName, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	c := newClient(ch, exchangeName, queueName, workers)
	c.conn = conn
	return c, nil
}

func newClient(ch channel, exchangeName, queueName string, workers int) *Client {
	if workers <= 0 {
		workers = 1
	}
	return &Client{
		channel:      ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		workers:      workers,
	}
}

func dial(ctx context.Context, url string) (*amqp091.Connection, error) {
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if !isConnectionError(err) {
			return nil, err
		}

		wait := exponentialBackoff(attempt)
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Dur("backoff", wait).Msg("AMQP dial failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// PublishExtractDocument implements jobs.Publisher. Messages are persistent
// JSON routed by the queue name.
func (c *Client) PublishExtractDocument(ctx context.Context, job *jobs.ExtractDocumentJob) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	job.Prepare(uuid.NewString, time.Now())
	if err := c.publishJob(ctx, job); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.JobID).
		Str("gcs_uri", job.GCSURI).
		Str("exchange", c.exchangeName).
		Str("queue", c.queueName).
		Msg("Published extraction job")
	return nil
}

func (c *Client) publishJob(ctx context.Context, job *jobs.ExtractDocumentJob) error {
	body, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.publish.Lock()
	defer c.publish.Unlock()
	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    job.JobID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Start implements jobs.Consumer. It sets the prefetch to the worker count
// and hands deliveries to that many goroutines. Acknowledgement is manual:
// success acks; a malformed body or permanent error is dropped; any other
// error republishes the job with its retry count raised until MaxRetries,
// then drops it.
func (c *Client) Start(ctx context.Context, handler jobs.JobHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return jobs.ErrQueueClosed
	}
	if c.cancel != nil {
		return fmt.Errorf("Start: consumer already started")
	}

	if err := c.channel.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	log := logger.FromContext(ctx)
	log.Info().Str("queue", c.queueName).Int("workers", c.workers).Msg("Started consuming extraction jobs")

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.consume(ctx, msgs, handler)
	}
	return nil
}

func (c *Client) consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler jobs.JobHandler) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-msgs:
			if !ok {
				log := logger.FromContext(ctx)
				log.Warn().Str("queue", c.queueName).Msg("Delivery channel closed")
				return
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	job, err := decodeJob(delivery.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal message")
		_ = delivery.Nack(false, false)
		return
	}
	log = log.With().Str("job_id", job.JobID).Str("gcs_uri", job.GCSURI).Logger()

	now := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now

	err = handler(logger.WithContext(ctx, log), job)
	if err == nil {
		_ = delivery.Ack(false)
		log.Info().Msg("Job completed")
		return
	}

	if jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries {
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
		_ = delivery.Nack(false, false)
		return
	}

	retry := job.Clone()
	retry.RetryCount++
	retry.Status = jobs.JobStatusPending
	retry.StartedAt = nil
	retry.Error = err.Error()
	if perr := c.publishJob(ctx, retry); perr != nil {
		// Let the broker redeliver the original instead.
		log.Warn().Err(perr).Msg("Failed to republish job, requeueing")
		_ = delivery.Nack(false, true)
		return
	}
	log.Warn().Err(err).Int("retry", retry.RetryCount).Msg("Job failed, republished for retry")
	_ = delivery.Ack(false)
}

// Stop implements jobs.Consumer. It stops the consumers and waits for
// in-flight handlers.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher. It stops consuming and closes the channel
// and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.Stop(context.Background())
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var _ jobs.Publisher = (*Client)(nil)
var _ jobs.Consumer = (*Client)(nil)
