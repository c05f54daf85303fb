package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisKey    = "arena:state"
	redisChannelSuffix = ":updates"
)

// RedisStore mirrors the state under a single key so remote viewers can
// read it, and publishes the cycle number on "<key>:updates" after each
// write. SET replaces the value atomically.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(url, key string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreClient(redis.NewClient(opt), key), nil
}

func NewRedisStoreClient(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Channel is where cycle numbers are published.
func (r *RedisStore) Channel() string { return r.key + redisChannelSuffix }

func (r *RedisStore) Save(ctx context.Context, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.Publish(ctx, r.Channel(), strconv.Itoa(s.CurrentCycle))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}
	s := &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse redis state: %w", err)
	}
	return s, nil
}

// Subscribe delivers the cycle number of every save until ctx ends.
func (r *RedisStore) Subscribe(ctx context.Context) (<-chan int, error) {
	sub := r.rdb.Subscribe(ctx, r.Channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan int)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				n, err := strconv.Atoi(m.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisStore) Close() error { return r.rdb.Close() }
