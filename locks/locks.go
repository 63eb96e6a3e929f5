// Package locks serializes processing of one conversation across concurrent webhook deliveries.
package locks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the key stays held by someone else until the wait runs out.
var ErrNotAcquired = errors.New("locks: lock not acquired")

// Locker takes a named lock. The returned release func is always safe to call.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Noop is used when redis is disabled.
type Noop struct{}

func (Noop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// só apaga a chave se ainda for nossa
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX PX and a compare-and-delete release.
type Redis struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Retry  time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		Client: client,
		Prefix: "wabiz:lock:",
		TTL:    ttl,
		Wait:   ttl,
		Retry:  50 * time.Millisecond,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.Client.SetNX(ctx, full, token, r.TTL).Result()
		if err != nil {
			return func() {}, err
		}
		if ok {
			return func() {
				// contexto próprio: o da requisição pode já ter sido cancelado
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, r.Client, []string{full}, token).Err()
			}, nil
		}
		if !time.Now().Before(deadline) {
			return func() {}, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(r.Retry):
		}
	}
}
