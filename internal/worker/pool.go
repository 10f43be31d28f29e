package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const QueueTicket = "jobs:ticket"

// maxIntentos is how many times a handler runs before the job goes to the DLQ.
const maxIntentos = 3

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one job payload. A returned error is retried.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// TicketJobPayload asks for the PDF ticket of a sale.
type TicketJobPayload struct {
	VentaID string `json:"venta_id"`
}

// EnqueueTicket pushes a ticket job to Redis.
func (d *Dispatcher) EnqueueTicket(ctx context.Context, ventaID string) error {
	return d.enqueue(ctx, QueueTicket, "ticket", TicketJobPayload{VentaID: ventaID})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues and routes each job to its handler by type.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	queues   []string
	// dlq is enviarADLQ outside tests.
	dlq     func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int)
	backoff time.Duration
}

func NewPool(rdb *redis.Client, handlers map[string]Handler) *Pool {
	p := &Pool{
		rdb:      rdb,
		handlers: handlers,
		queues:   []string{QueueTicket},
		backoff:  time.Second,
	}
	p.dlq = func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
		enviarADLQ(ctx, rdb, queue, jobType, payload, reason, attempts)
	}
	return p
}

// Start launches numWorkers goroutines consuming every queue.
// Each goroutine blocks on BRPOP, idle without polling.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s, then rechecks ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.dlq(ctx, queue, "", json.RawMessage(raw), "envelope inválido: "+err.Error(), 0)
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		p.dlq(ctx, queue, job.Type, job.Payload, "sin handler para el tipo de job", 0)
		return
	}

	intentos := 0
	err := withRetry(ctx, maxIntentos, p.backoff, func(attempt int) error {
		intentos = attempt + 1
		return h(ctx, job.Payload)
	})
	if err != nil {
		log.Error().Err(err).Str("type", job.Type).Int("attempts", intentos).Msg("job failed")
		p.dlq(ctx, queue, job.Type, job.Payload, err.Error(), intentos)
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// starting at base. Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
