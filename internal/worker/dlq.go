package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead letter list of each queue: dlq:{queue}.
const DLQPrefix = "dlq:"

// EntradaDLQ is a job that ran out of attempts, kept for manual inspection.
type EntradaDLQ struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Motivo   string          `json:"motivo"`
	FailedAt string          `json:"failed_at"`
	Intentos int             `json:"intentos"`
}

func enviarADLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, motivo string, intentos int) {
	data, err := json.Marshal(EntradaDLQ{
		Queue:    queue,
		JobType:  jobType,
		Payload:  payload,
		Motivo:   motivo,
		FailedAt: time.Now().UTC().Format(time.RFC3339),
		Intentos: intentos,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: no se pudo serializar")
		return
	}
	key := DLQPrefix + queue
	if err := rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: push fallido")
		return
	}
	log.Warn().Str("queue", queue).Str("job_type", jobType).Str("motivo", motivo).
		Int("intentos", intentos).Msg("dlq: job movido a dead letter")
}

// TicketsPendientesDLQ counts ticket jobs waiting in the dead letter list.
func TicketsPendientesDLQ(ctx context.Context, rdb *redis.Client) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+QueueTicket).Result()
}

// ReencolarTickets moves up to n dead ticket jobs back to the ticket queue,
// e.g. after the storage path became writable again. Returns how many moved.
func ReencolarTickets(ctx context.Context, rdb *redis.Client, n int) (int, error) {
	movidos := 0
	for ; movidos < n; movidos++ {
		raw, err := rdb.RPop(ctx, DLQPrefix+QueueTicket).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return movidos, err
		}
		var e EntradaDLQ
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Msg("dlq: entrada ilegible descartada")
			continue
		}
		job, err := json.Marshal(Job{Type: e.JobType, Payload: e.Payload})
		if err != nil {
			return movidos, err
		}
		if err := rdb.LPush(ctx, QueueTicket, job).Err(); err != nil {
			return movidos, err
		}
	}
	return movidos, nil
}
