// Package queue implements the broker publisher from spec.md §4.8: a
// connection to an AMQP 0.9.1 broker with retrying connect, a direct-queue
// or fanout-exchange routing contract, and a bounded-concurrency submit
// path. The retry backoff shape (base delay, capped exponential growth,
// max attempts) follows the teacher's PipelineConfig.RetryBaseDelay /
// RetryMaxDelay / RetryMaxAttempts pattern (internal/pipeline.backoffDelay);
// the bounded in-flight slot follows the teacher's channel-based semaphore
// in internal/resources.Manager.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/idgen"
	"github.com/silverbeer/match-scraper/internal/matchmodel"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
)

// TaskName is the fixed Celery-compatible task name carried in the
// published message's headers/MessageId (spec.md §4.8); the message body
// itself is the flat Match JSON document, not a task envelope.
const TaskName = "celery_tasks.match_tasks.process_match_data"

// RetryConfig shapes the connect-retry backoff, grounded on the teacher's
// RetryBaseDelay/RetryMaxDelay/RetryMaxAttempts fields.
type RetryConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryConfig matches spec.md §4.8: 1s initial, factor 2, capped at
// ~30s, up to 5 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 5}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	base := r.BaseDelay
	max := r.MaxDelay
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	d := base * time.Duration(1<<attempt)
	if d > max {
		d = max
	}
	return d
}

// Target names exactly one of a direct queue or a fanout exchange.
type Target struct {
	Queue    string
	Exchange string
}

// Publisher owns the broker connection/channel and the bounded in-flight
// semaphore for concurrent publishes (spec.md §4.8).
type Publisher struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	target  Target
	ids     idgen.IDGen
	log     logging.Logger
	slots   chan struct{}
}

// Connect dials url with exponential-backoff retry per retryCfg, declares
// nothing beyond what target requires to publish (the queue/exchange is
// expected to pre-exist upstream — spec.md §4.8 scopes this component to
// publishing, not topology management), and returns a ready Publisher.
func Connect(ctx context.Context, url string, target Target, maxInFlight int, retryCfg RetryConfig, ids idgen.IDGen, log logging.Logger) (*Publisher, error) {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}

	var lastErr error
	attempts := retryCfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for attempt := 0; attempt < attempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr == nil {
				return &Publisher{
					conn:   conn,
					ch:     ch,
					target: target,
					ids:    ids,
					log:    log,
					slots:  make(chan struct{}, maxInFlight),
				}, nil
			}
			lastErr = chErr
			conn.Close()
		} else {
			lastErr = err
		}

		if attempt == attempts-1 {
			break
		}
		if log != nil {
			log.WarnCtx(ctx, "broker connect attempt failed, retrying", "attempt", attempt+1, "error", lastErr.Error())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryCfg.delay(attempt)):
		}
	}
	return nil, &errs.BrokerUnavailable{URL: url, Err: lastErr}
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// SubmitResult is the per-match publish outcome spec.md §4.8 requires
// `submit_batch` to report.
type SubmitResult struct {
	CorrelationID string
	TaskID        string
	Success       bool
	Err           error
}

// SubmitBatch publishes every match concurrently (bounded by the Publisher's
// in-flight semaphore), pre-validating each message before publish. A
// validation failure is a MessageValidationError for that match only and
// does not abort the batch (spec.md §4.8).
func (p *Publisher) SubmitBatch(ctx context.Context, matches []matchmodel.Match) []SubmitResult {
	results := make([]SubmitResult, len(matches))
	done := make(chan struct{}, len(matches))

	for i, m := range matches {
		i, m := i, m
		p.slots <- struct{}{}
		go func() {
			defer func() { <-p.slots; done <- struct{}{} }()
			results[i] = p.submitOne(ctx, m)
		}()
	}
	for range matches {
		<-done
	}
	return results
}

func (p *Publisher) submitOne(ctx context.Context, m matchmodel.Match) SubmitResult {
	if err := m.Validate(); err != nil {
		vErr := &errs.MessageValidationError{CorrelationID: m.ExternalMatchID, Err: err}
		if p.log != nil {
			p.log.WarnCtx(ctx, "message failed pre-publish validation", "match_id", m.ExternalMatchID, "error", err.Error())
		}
		return SubmitResult{CorrelationID: m.ExternalMatchID, Success: false, Err: vErr}
	}

	taskID := p.ids.TaskID()
	exchange, routingKey, pub, err := buildPublishing(p.target, taskID, m)
	if err != nil {
		return SubmitResult{CorrelationID: m.ExternalMatchID, Success: false, Err: err}
	}

	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, pub); err != nil {
		return SubmitResult{CorrelationID: m.ExternalMatchID, TaskID: taskID, Success: false, Err: err}
	}
	return SubmitResult{CorrelationID: m.ExternalMatchID, TaskID: taskID, Success: true}
}

// buildPublishing constructs the routing key/exchange and wire message for
// one match. The body is the flat Match JSON document (spec.md §4.8,
// Testable Property 7: "round-tripped JSON re-parses equal to m"); the task
// envelope lives only in headers/MessageId, never in the body.
func buildPublishing(target Target, taskID string, m matchmodel.Match) (exchange, routingKey string, pub amqp.Publishing, err error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", "", amqp.Publishing{}, err
	}

	exchange, routingKey = target.Exchange, target.Queue
	if target.IsDirectQueue() {
		exchange = ""
		routingKey = target.Queue
	}

	pub = amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{"task": TaskName, "task_id": taskID},
		MessageId:    taskID,
		Body:         body,
	}
	return exchange, routingKey, pub, nil
}

// IsDirectQueue reports whether t targets a direct queue rather than a
// fanout exchange.
func (t Target) IsDirectQueue() bool { return t.Queue != "" }
