package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// opTimeout bounds every single Redis command. The engine treats timeouts as
// transient: log and carry on, a later event re-drives the state machine.
const opTimeout = 2 * time.Second

// ErrNotFound maps redis.Nil so callers don't import go-redis for the check.
var ErrNotFound = errors.New("store: key not found")

// Store is a thin typed wrapper over the shared Redis client. All authoritative
// game state goes through it; nothing is cached in process.
type Store struct {
	client redis.UniversalClient
	db     int
}

func New(client redis.UniversalClient, db int) *Store {
	return &Store{client: client, db: db}
}

// Connect dials a standalone Redis and verifies it with a bounded ping.
func Connect(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping %s: %w", addr, err)
	}
	return New(client, db), nil
}

// EnableKeyspaceNotifications switches on expired-event delivery ("Ex").
// Without it the timer watcher is inert, so Connect callers should invoke this
// at boot and treat failure as fatal.
func (s *Store) EnableKeyspaceNotifications(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// --- strings ---

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.Set(ctx, key, value, 0).Err()
}

// SetEx writes a value with a TTL; the expiry of these keys is what drives the
// game's timers.
func (s *Store) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.IncrBy(ctx, key, delta).Result()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.Expire(ctx, key, ttl).Err()
}

// TTL returns the remaining lifetime of key, 0 when the key has no TTL or does
// not exist.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// --- hashes ---

func (s *Store) HSet(ctx context.Context, key string, fields map[string]any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	val, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.HGetAll(ctx, key).Result()
}

// --- sets ---

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.SAdd(ctx, key, args...).Err()
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.SRem(ctx, key, args...).Err()
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.SCard(ctx, key).Result()
}

// SPop removes and returns one random member, ErrNotFound when the set is empty.
func (s *Store) SPop(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	val, err := s.client.SPop(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

// --- lists ---

func (s *Store) RPush(ctx context.Context, key string, values ...string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.client.RPush(ctx, key, args...).Err()
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.LLen(ctx, key).Result()
}

// --- scans ---

// Keys returns every key matching pattern. Room cleanup is the only caller and
// rooms hold a bounded handful of keys, so SCAN is used with a small page size.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	var out []string
	var cursor uint64
	for {
		page, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// --- locks ---

// AcquireLock takes the cross-replica mutex for one timer expiry via
// SET key nodeID NX PX. Only the winner runs the expiry handler.
func (s *Store) AcquireLock(ctx context.Context, key, nodeID string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.SetNX(ctx, key, nodeID, ttl).Result()
}

// --- pub/sub ---

// Publish sends a payload on a channel; used by the broadcaster.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns a go-redis subscription for the given channels.
func (s *Store) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return s.client.Subscribe(ctx, channels...)
}

// SubscribeExpirations streams the names of expired keys from the keyspace
// notification channel for the configured db. The channel closes when ctx is
// cancelled. A slow consumer backpressures the subscription rather than losing
// events; a lost expiry has no re-drive.
func (s *Store) SubscribeExpirations(ctx context.Context) <-chan string {
	channel := fmt.Sprintf("__keyevent@%d__:expired", s.db)
	sub := s.client.Subscribe(ctx, channel)
	out := make(chan string, 64)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
