package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hotelchat/internal/pkg/logx"
)

const redisKeyPrefix = "hotelchat:session:"

// NewRedisClient connects to the Redis server at addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logx.Debug("Redis connection established", "addr", addr)
	return rdb, nil
}

// RedisBackend persists the session in Redis and announces every change on a pub/sub channel,
// so processes on different machines share one session per profile.
type RedisBackend struct {
	rdb      *redis.Client
	tokenKey string
	userKey  string
	channel  string
	owned    bool
}

// NewRedisBackend returns a backend for profile. When owned is true, Close closes rdb.
func NewRedisBackend(rdb *redis.Client, profile string, owned bool) *RedisBackend {
	base := redisKeyPrefix + profile
	return &RedisBackend{
		rdb:      rdb,
		tokenKey: base + ":token",
		userKey:  base + ":user",
		channel:  base,
		owned:    owned,
	}
}

func (b *RedisBackend) Load(ctx context.Context) (Record, bool, error) {
	var rec Record

	values, err := b.rdb.MGet(ctx, b.tokenKey, b.userKey).Result()
	if err != nil {
		return rec, false, fmt.Errorf("failed to load session: %w", err)
	}

	if token, ok := values[0].(string); ok {
		rec.Token = token
	}
	if raw, ok := values[1].(string); ok {
		var doc userDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			logx.Warn("Ignoring unreadable session user", "error", err.Error())
		} else {
			rec.Revision = doc.Revision
			rec.Origin = doc.Origin
			if len(doc.User) > 0 {
				if err := json.Unmarshal(doc.User, &rec.Identity); err != nil {
					logx.Warn("Ignoring unreadable cached identity", "error", err.Error())
				}
			}
		}
	}
	return rec, rec.Token != "", nil
}

func (b *RedisBackend) Save(ctx context.Context, rec Record) error {
	user, err := json.Marshal(rec.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	doc, err := json.Marshal(userDocument{Revision: rec.Revision, Origin: rec.Origin, User: user})
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	event, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session event: %w", err)
	}

	_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.tokenKey, rec.Token, 0)
		pipe.Set(ctx, b.userKey, doc, 0)
		pipe.Publish(ctx, b.channel, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (b *RedisBackend) Clear(ctx context.Context, tombstone Record) error {
	tombstone.Token = ""
	doc, err := json.Marshal(userDocument{Revision: tombstone.Revision, Origin: tombstone.Origin})
	if err != nil {
		return fmt.Errorf("failed to encode session tombstone: %w", err)
	}
	event, err := json.Marshal(tombstone)
	if err != nil {
		return fmt.Errorf("failed to encode session event: %w", err)
	}

	_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.tokenKey)
		pipe.Set(ctx, b.userKey, doc, 0)
		pipe.Publish(ctx, b.channel, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Watch subscribes to the profile channel. The subscription is confirmed before Watch returns,
// so no change published afterwards is missed.
func (b *RedisBackend) Watch(ctx context.Context) (<-chan Record, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to session changes: %w", err)
	}

	messages := sub.Channel()
	out := make(chan Record, 1)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var rec Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					logx.Warn("Ignoring malformed session event", "error", err.Error())
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBackend) Close() error {
	if !b.owned {
		return nil
	}
	if err := b.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
