package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	// presenceKeyPrefix chat:presence:{userId} -> connId
	presenceKeyPrefix = "chat:presence:"
	// onlineSetKey holds the ids of every bound user
	onlineSetKey = "chat:presence:online"
)

// releaseScript deletes the binding only when it still names the releasing connection.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

type redisPresence struct {
	rdb *redis.Client
}

// NewRedisPresence keeps the user to connection mapping in Redis so it
// survives hub restarts and can be inspected from outside the process.
func NewRedisPresence(rdb *redis.Client) Presence {
	return &redisPresence{rdb: rdb}
}

func presenceKey(userID int64) string {
	return presenceKeyPrefix + strconv.FormatInt(userID, 10)
}

func (p *redisPresence) Bind(ctx context.Context, userID int64, connID string) error {
	pipe := p.rdb.TxPipeline()
	pipe.Set(ctx, presenceKey(userID), connID, 0)
	pipe.SAdd(ctx, onlineSetKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bind presence: %w", err)
	}
	return nil
}

func (p *redisPresence) Lookup(ctx context.Context, userID int64) (string, bool, error) {
	connID, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup presence: %w", err)
	}
	return connID, true, nil
}

func (p *redisPresence) Release(ctx context.Context, userID int64, connID string) error {
	keys := []string{presenceKey(userID), onlineSetKey}
	if err := releaseScript.Run(ctx, p.rdb, keys, connID, userID).Err(); err != nil {
		return fmt.Errorf("release presence: %w", err)
	}
	return nil
}

func (p *redisPresence) Online(ctx context.Context) ([]int64, error) {
	members, err := p.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
