// Package webhook implements the outbound event-delivery pipeline:
// queueing over JetStream, HMAC signing, HTTP delivery, exponential-
// backoff retry, and delivery-log persistence.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/metrics"
	"github.com/linkforty/linkforty/internal/store"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Dispatcher enqueues webhook deliveries and runs the background consumer
// that actually performs them.
type Dispatcher struct {
	js       nats.JetStreamContext
	webhooks store.WebhookStore
	logs     store.DeliveryLogStore
	log      *zap.Logger
	client   *http.Client
}

// New constructs a Dispatcher. js may be nil, in which case Enqueue is a
// no-op, so a disabled broker never blocks local/dev environments.
func New(js nats.JetStreamContext, webhooks store.WebhookStore, logs store.DeliveryLogStore, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		js: js, webhooks: webhooks, logs: logs, log: log,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Start provisions the JetStream stream/consumer if missing and begins
// pulling messages.
func (d *Dispatcher) Start() error {
	if d.js == nil {
		return nil
	}

	if _, err := d.js.StreamInfo(StreamName); err != nil {
		if _, err := d.js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{StreamSubject},
			MaxBytes: StreamMaxBytes,
		}); err != nil {
			return fmt.Errorf("webhook: create stream: %w", err)
		}
	}

	if _, err := d.js.ConsumerInfo(StreamName, ConsumerName); err != nil {
		if _, err := d.js.AddConsumer(StreamName, &nats.ConsumerConfig{
			Durable:   ConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		}); err != nil {
			return fmt.Errorf("webhook: create consumer: %w", err)
		}
	}

	sub, err := d.js.PullSubscribe(StreamSubject, ConsumerName)
	if err != nil {
		return fmt.Errorf("webhook: subscribe: %w", err)
	}

	go d.consume(sub)
	return nil
}

// Enqueue publishes a delivery attempt for wh/evt/payload at attempt 1.
// A nil JetStream context makes this a no-op.
func (d *Dispatcher) Enqueue(ctx context.Context, wh domain.Webhook, evt domain.EventType, payload any) {
	if d.js == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("webhook: marshal payload", zap.Error(err))
		return
	}

	msg := message{
		EventID: uuid.NewString(), WebhookID: wh.ID, EventType: evt,
		Payload: raw, Attempt: 1, EnqueuedAt: time.Now(),
	}
	d.publish(msg)
}

func (d *Dispatcher) publish(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		d.log.Error("webhook: marshal message", zap.Error(err))
		return
	}
	if _, err := d.js.Publish(StreamSubject, data); err != nil {
		d.log.Error("webhook: publish delivery message", zap.Error(err), zap.String("webhook_id", msg.WebhookID))
	}
}

func (d *Dispatcher) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			d.log.Error("webhook: fetch messages", zap.Error(err))
			continue
		}

		for _, m := range msgs {
			var msg message
			if err := json.Unmarshal(m.Data, &msg); err != nil {
				d.log.Error("webhook: unmarshal message", zap.Error(err))
				m.Ack()
				continue
			}
			d.handle(ctx, msg)
			m.Ack()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg message) {
	wh, err := d.webhooks.GetByID(ctx, msg.WebhookID)
	if err != nil {
		d.log.Warn("webhook: delivery dropped, webhook missing", zap.String("webhook_id", msg.WebhookID), zap.Error(err))
		return
	}
	if !wh.IsActive {
		return
	}

	entry, deliverErr := d.attempt(ctx, *wh, msg)
	if err := d.logs.Create(ctx, entry); err != nil {
		d.log.Error("webhook: persist delivery log", zap.Error(err))
	}
	if deliverErr == nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
		return
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()

	if msg.Attempt >= wh.MaxAttempts {
		d.log.Warn("webhook: delivery exhausted retries", zap.String("webhook_id", wh.ID), zap.String("event_id", msg.EventID))
		return
	}

	delay := backoff(msg.Attempt)
	next := msg
	next.Attempt++
	go func() {
		time.Sleep(delay)
		d.publish(next)
	}()
}

// attempt performs exactly one HTTP delivery attempt and returns its
// DeliveryLog row plus any error observed.
func (d *Dispatcher) attempt(ctx context.Context, wh domain.Webhook, msg message) (*domain.DeliveryLog, error) {
	entry := &domain.DeliveryLog{
		ID: uuid.NewString(), WebhookID: wh.ID, EventID: msg.EventID,
		EventType: msg.EventType, Attempt: msg.Attempt, AttemptedAt: time.Now(),
	}

	body, err := json.Marshal(newDeliveryEnvelope(msg))
	if err != nil {
		entry.Error = err.Error()
		return entry, err
	}

	sig := Sign([]byte(wh.Secret), body)

	timeoutMS := wh.TimeoutMS
	timeout := time.Duration(timeoutMS) * time.Millisecond
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		entry.Error = err.Error()
		return entry, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LinkForty-Webhook/1.0")
	req.Header.Set("X-LinkForty-Event", string(msg.EventType))
	req.Header.Set("X-LinkForty-Signature", "sha256="+sig)
	req.Header.Set("X-LinkForty-Event-ID", msg.EventID)
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Error = fmt.Sprintf("Timeout after %dms", timeoutMS)
		} else {
			entry.Error = err.Error()
		}
		return entry, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1000))
	entry.ResponseStatus = resp.StatusCode
	entry.ResponseBody = string(respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook: non-2xx response: %d", resp.StatusCode)
		entry.Error = err.Error()
		return entry, err
	}

	entry.Success = true
	return entry, nil
}

// Test performs a single synchronous delivery attempt with no retry and
// no queue, for the webhook test endpoint.
func (d *Dispatcher) Test(ctx context.Context, wh domain.Webhook, evt domain.EventType, payload any) (*domain.DeliveryLog, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal test payload: %w", err)
	}
	msg := message{EventID: uuid.NewString(), WebhookID: wh.ID, EventType: evt, Payload: raw, Attempt: 1, EnqueuedAt: time.Now()}
	entry, deliverErr := d.attempt(ctx, wh, msg)
	if err := d.logs.Create(ctx, entry); err != nil {
		d.log.Error("webhook: persist test delivery log", zap.Error(err))
	}
	return entry, deliverErr
}

// backoff computes min(1000*2^(n-1), 30000) ms before the
// (n+1)th attempt.
func backoff(attempt int) time.Duration {
	ms := 1000 << (attempt - 1)
	if ms > domain.MaxBackoffMS || ms <= 0 {
		ms = domain.MaxBackoffMS
	}
	return time.Duration(ms) * time.Millisecond
}
