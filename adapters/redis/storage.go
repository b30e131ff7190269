package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tourneykit/core"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"ADDR"`
	Password     string        `json:"password,omitempty" env:"PASSWORD"`
	DB           int           `json:"db" env:"DB"`
	PoolSize     int           `json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	CacheTTL     time.Duration `json:"cache_ttl" env:"CACHE_TTL"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		CacheTTL:     5 * time.Minute,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - profile:{user_id}:stats -> hash of counters and total_earnings
// - profile:{user_id}:badges -> set of externally granted badge ids
// - profile:{user_id}:identity -> hash with email, role and updated
// - profile:{user_id}:cache -> msgpack blob of the assembled Profile
type Store struct {
	client   *redis.Client
	cacheTTL time.Duration

	beforeFill func(core.UserID) // test hook
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewWithClient(client)
	if config.CacheTTL > 0 {
		s.cacheTTL = config.CacheTTL
	}
	return s, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, cacheTTL: 5 * time.Minute}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

const fieldEarnings = "total_earnings"

func statsKey(userID core.UserID) string    { return fmt.Sprintf("profile:%s:stats", userID) }
func badgesKey(userID core.UserID) string   { return fmt.Sprintf("profile:%s:badges", userID) }
func identityKey(userID core.UserID) string { return fmt.Sprintf("profile:%s:identity", userID) }
func cacheKey(userID core.UserID) string    { return fmt.Sprintf("profile:%s:cache", userID) }

// write runs fn in a MULTI/EXEC block that also stamps the update time and
// drops the cached profile.
func (s *Store) write(ctx context.Context, userID core.UserID, fn func(redis.Pipeliner)) ([]redis.Cmder, error) {
	return s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(pipe)
		pipe.HSet(ctx, identityKey(userID), "updated", time.Now().UTC().Format(time.RFC3339Nano))
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
}

// IncrementStat atomically adds delta to a counter. Redis rejects increments
// that would overflow a signed 64-bit integer.
func (s *Store) IncrementStat(ctx context.Context, userID core.UserID, stat core.Stat, delta int64) (int64, error) {
	if !stat.Valid() {
		return 0, fmt.Errorf("unknown stat: %s", stat)
	}
	var incr *redis.IntCmd
	_, err := s.write(ctx, userID, func(pipe redis.Pipeliner) {
		incr = pipe.HIncrBy(ctx, statsKey(userID), string(stat), delta)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment stat: %w", err)
	}
	return incr.Val(), nil
}

func (s *Store) AddEarnings(ctx context.Context, userID core.UserID, amount float64) (float64, error) {
	var incr *redis.FloatCmd
	_, err := s.write(ctx, userID, func(pipe redis.Pipeliner) {
		incr = pipe.HIncrByFloat(ctx, statsKey(userID), fieldEarnings, amount)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add earnings: %w", err)
	}
	return incr.Val(), nil
}

// GrantBadge adds a badge to the user's granted set
func (s *Store) GrantBadge(ctx context.Context, userID core.UserID, badge core.BadgeID) error {
	_, err := s.write(ctx, userID, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, badgesKey(userID), string(badge))
	})
	if err != nil {
		return fmt.Errorf("failed to grant badge: %w", err)
	}
	return nil
}

func (s *Store) SetRole(ctx context.Context, userID core.UserID, role core.Role) error {
	_, err := s.write(ctx, userID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, identityKey(userID), "role", string(role))
	})
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

func (s *Store) SetEmail(ctx context.Context, userID core.UserID, email string) error {
	_, err := s.write(ctx, userID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, identityKey(userID), "email", email)
	})
	if err != nil {
		return fmt.Errorf("failed to set email: %w", err)
	}
	return nil
}

// GetProfile retrieves the complete profile, using cache when possible.
// The cache is filled under WATCH on the identity hash, which every write
// touches, so a fill that races a write is discarded.
func (s *Store) GetProfile(ctx context.Context, userID core.UserID) (core.Profile, error) {
	if cached, err := s.getCachedProfile(ctx, userID); err == nil {
		return cached, nil
	}

	var p core.Profile
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		built, err := s.buildProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		p = built
		if s.beforeFill != nil {
			s.beforeFill(userID)
		}
		// Best-effort; redis.TxFailedErr means a write won.
		_ = s.updateProfileCache(ctx, tx, userID, p)
		return nil
	}, identityKey(userID))
	if err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

func (s *Store) getCachedProfile(ctx context.Context, userID core.UserID) (core.Profile, error) {
	data, err := s.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return core.Profile{}, err
	}
	var p core.Profile
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

func (s *Store) updateProfileCache(ctx context.Context, tx *redis.Tx, userID core.UserID, p core.Profile) error {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cacheKey(userID), data, s.cacheTTL)
		return nil
	})
	return err
}

// buildProfile reads the three backing keys in one round trip.
func (s *Store) buildProfile(ctx context.Context, tx *redis.Tx, userID core.UserID) (core.Profile, error) {
	pipe := tx.Pipeline()
	statsCmd := pipe.HGetAll(ctx, statsKey(userID))
	badgesCmd := pipe.SMembers(ctx, badgesKey(userID))
	identityCmd := pipe.HGetAll(ctx, identityKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return core.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}

	p := core.NewProfile(userID)
	for field, raw := range statsCmd.Val() {
		if field == fieldEarnings {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				p.Stats.TotalEarnings = v
			}
			continue
		}
		counter := p.Stats.Counter(core.Stat(field))
		if counter == nil {
			continue
		}
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			*counter = v
		}
	}

	ids := make([]core.BadgeID, 0, len(badgesCmd.Val()))
	for _, b := range badgesCmd.Val() {
		ids = append(ids, core.BadgeID(b))
	}
	p.Stats.ExistingBadgeIDs = core.NormalizeBadgeIDs(ids)

	identity := identityCmd.Val()
	p.Email = identity["email"]
	if role, ok := identity["role"]; ok && role != "" {
		p.Role = core.Role(role)
	}
	if ts, err := time.Parse(time.RFC3339Nano, identity["updated"]); err == nil {
		p.Updated = ts
	}
	return p, nil
}
