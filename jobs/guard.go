package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v7"
)

const (
	guardKeyPrefix = "astrodart:job:"
	guardTTL       = 25 * time.Hour
)

// Guard decides whether this process may run a job for a period. It keeps
// replicas from running the same scheduled job twice.
type Guard interface {
	Acquire(ctx context.Context, job, period string) (bool, error)
}

// setNXer is the part of *redis.Client the guard needs.
type setNXer interface {
	SetNX(key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type RedisGuard struct {
	client setNXer
	owner  string
}

// NewRedisGuard connects to addr and fails if the server does not answer.
func NewRedisGuard(addr string) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if _, err := client.Ping().Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	return newRedisGuard(client), nil
}

func newRedisGuard(client setNXer) *RedisGuard {
	host, _ := os.Hostname()
	return &RedisGuard{
		client: client,
		owner:  fmt.Sprintf("%s:%d", host, os.Getpid()),
	}
}

// Acquire takes the lease for job in period. It returns false when another
// process already holds it.
func (g *RedisGuard) Acquire(_ context.Context, job, period string) (bool, error) {
	key := guardKeyPrefix + job + ":" + period
	ok, err := g.client.SetNX(key, g.owner, guardTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		log.Printf("⏭️ [Job:%s] lease %s held by another process", job, key)
	}
	return ok, nil
}
