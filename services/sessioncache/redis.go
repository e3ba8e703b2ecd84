package sessioncache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/zap"
)

const (
	fieldJTI         = "jti"
	fieldIsLoggedOut = "isLoggedOut"
	fieldIPAddress   = "ipAddress"
	fieldLocation    = "location"
	fieldCreatedAt   = "createdAt"

	scanBatch = 100
)

// RedisCache stores each session as a hash under session:{userId}:{deviceId}.
type RedisCache struct {
	client *redis.Client
	logger *logging.Service
}

func NewRedisCache(client *redis.Client, logger *logging.Service) *RedisCache {
	return &RedisCache{client: client, logger: logger.Named("sessioncache")}
}

// saveScript writes the hash unless a live entry would overwrite a logged-out
// one. ARGV: isLoggedOut of the new entry, ttl in milliseconds, field pairs.
var saveScript = redis.NewScript(`
if ARGV[1] == 'false' and redis.call('HGET', KEYS[1], '` + fieldIsLoggedOut + `') == 'true' then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

func (c *RedisCache) Save(ctx context.Context, userID, deviceID string, entry Entry, ttl time.Duration) error {
	args := append([]any{strconv.FormatBool(entry.IsLoggedOut), max(ttl.Milliseconds(), 0)}, hashFields(entry)...)

	written, err := saveScript.Run(ctx, c.client, []string{Key(userID, deviceID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	if written == 0 {
		return ErrRevoked
	}
	return nil
}

func (c *RedisCache) Replace(ctx context.Context, userID, deviceID string, entry Entry, ttl time.Duration) error {
	key := Key(userID, deviceID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, hashFields(entry)...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	} else {
		pipe.Persist(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

func hashFields(entry Entry) []any {
	return []any{
		fieldJTI, entry.JTI,
		fieldIsLoggedOut, strconv.FormatBool(entry.IsLoggedOut),
		fieldIPAddress, entry.IPAddress,
		fieldLocation, entry.Location,
		fieldCreatedAt, entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (c *RedisCache) Get(ctx context.Context, userID, deviceID string) (*Entry, error) {
	values, err := c.client.HGetAll(ctx, Key(userID, deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached session: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrMiss
	}

	entry := &Entry{
		JTI:       values[fieldJTI],
		IPAddress: values[fieldIPAddress],
		Location:  values[fieldLocation],
	}

	if entry.IsLoggedOut, err = strconv.ParseBool(values[fieldIsLoggedOut]); err != nil {
		c.logger.Warn("discarding unreadable cache entry",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID))
		return nil, ErrMiss
	}

	if raw := values[fieldCreatedAt]; raw != "" {
		if created, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.CreatedAt = created
		}
	}

	return entry, nil
}

func (c *RedisCache) Delete(ctx context.Context, userID, deviceID string) error {
	if err := c.client.Del(ctx, Key(userID, deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached session: %w", err)
	}
	return nil
}

// DeleteAll removes every cached device of the user. SCAN is used instead of
// KEYS so large keyspaces are walked incrementally.
func (c *RedisCache) DeleteAll(ctx context.Context, userID string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, userPattern(userID), scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan cached sessions: %w", err)
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete cached sessions: %w", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("cached sessions removed",
		zap.String("user_id", userID),
		zap.Int("keys", deleted))
	return deleted, nil
}
