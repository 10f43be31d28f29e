package middleware

import (
	"net/http"
	"strconv"

	"bersapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter limits requests per client IP. formato uses the limiter notation
// ("1000-M"). With a Redis client the counters are shared across instances;
// otherwise they live in process memory.
func RateLimiter(formato string, rdb *redis.Client) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formato)
	if err != nil {
		return nil, err
	}

	store := limiter.Store(memory.NewStore())
	if rdb != nil {
		store, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "pos:ratelimit"})
		if err != nil {
			return nil, err
		}
	}
	instance := limiter.New(store, rate)

	return func(c *gin.Context) {
		ctx, err := instance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Fail open: a limiter outage must not take the register down.
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("rate limiter no disponible")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		if ctx.Reached {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}, nil
}
