// Package readcache caches the terminal's read-only backend queries (stock
// and per-caja sale lists) and drops them on named invalidation signals.
package readcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const prefijo = "pos:cache:"

// Invalidador receives the invalidation signals raised by the sale saga and
// the realtime layer.
type Invalidador interface {
	InvalidarStock(ctx context.Context, sucursalID string) error
	InvalidarResumenCaja(ctx context.Context, cajaID string) error
	// InvalidarCajas drops every per-caja entry, for when events may have
	// been missed.
	InvalidarCajas(ctx context.Context) error
}

// Almacen is a read cache keyed by the helpers below.
type Almacen interface {
	Invalidador
	Obtener(ctx context.Context, clave string, dest any) (bool, error)
	Guardar(ctx context.Context, clave string, v any) error
}

func ClaveStock(sucursalID string) string { return "stock:" + sucursalID }

func ClaveVentasCaja(cajaID string) string { return "caja:" + cajaID + ":ventas" }

const prefijoCajas = "caja:"

func patronCaja(cajaID string) string { return prefijoCajas + cajaID + ":" }

// Redis is the Almacen used by terminals with a local Redis.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (c *Redis) Obtener(ctx context.Context, clave string, dest any) (bool, error) {
	data, err := c.rdb.Get(ctx, prefijo+clave).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// corrupt entry: drop it and report a miss
		_ = c.rdb.Del(ctx, prefijo+clave).Err()
		return false, nil
	}
	return true, nil
}

func (c *Redis) Guardar(ctx context.Context, clave string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, prefijo+clave, data, c.ttl).Err()
}

func (c *Redis) InvalidarStock(ctx context.Context, sucursalID string) error {
	return c.borrarPrefijo(ctx, ClaveStock(sucursalID))
}

func (c *Redis) InvalidarResumenCaja(ctx context.Context, cajaID string) error {
	return c.borrarPrefijo(ctx, patronCaja(cajaID))
}

func (c *Redis) InvalidarCajas(ctx context.Context) error {
	return c.borrarPrefijo(ctx, prefijoCajas)
}

func (c *Redis) borrarPrefijo(ctx context.Context, p string) error {
	iter := c.rdb.Scan(ctx, 0, prefijo+p+"*", 100).Iterator()
	var claves []string
	for iter.Next(ctx) {
		claves = append(claves, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(claves) == 0 {
		return nil
	}
	log.Debug().Strs("claves", claves).Msg("readcache: invalidadas")
	return c.rdb.Del(ctx, claves...).Err()
}
