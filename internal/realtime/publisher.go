package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CanalPorDefecto is the Redis pub/sub channel shared by backend instances.
const CanalPorDefecto = "pos:eventos"

// RedisPublicador publishes events to Redis so every backend instance can
// forward them to its own websocket clients.
type RedisPublicador struct {
	rdb   *redis.Client
	canal string
}

func NewRedisPublicador(rdb *redis.Client, canal string) *RedisPublicador {
	if canal == "" {
		canal = CanalPorDefecto
	}
	return &RedisPublicador{rdb: rdb, canal: canal}
}

func (p *RedisPublicador) Publicar(ctx context.Context, e Evento) error {
	if e.Fecha.IsZero() {
		e.Fecha = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.canal, data).Err()
}

// Reenviar subscribes the Redis channel and hands every event to the hub
// until ctx is cancelled.
func Reenviar(ctx context.Context, rdb *redis.Client, canal string, hub *Hub) error {
	if canal == "" {
		canal = CanalPorDefecto
	}
	sub := rdb.Subscribe(ctx, canal)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Info().Str("canal", canal).Msg("realtime: suscrito a redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := Decodificar([]byte(msg.Payload))
			if err != nil {
				log.Warn().Err(err).Msg("realtime: evento redis descartado")
				continue
			}
			if err := hub.Publicar(ctx, e); err != nil {
				return err
			}
		}
	}
}
