package stream

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

// redisLog keeps the event log in a sorted set scored by position, with the
// position counter in a companion key. ZRANGEBYSCORE with an exclusive lower
// bound serves cursor queries; ZREMRANGEBYRANK trims the oldest entries.
type redisLog struct {
	log    *logger.Logger
	rdb    *goredis.Client
	setKey string
	seqKey string
}

func NewRedisLog(log *logger.Logger, rdb *goredis.Client, prefix string) EventLog {
	if prefix == "" {
		prefix = "events"
	}
	return &redisLog{
		log:    log.With("component", "RedisEventLog"),
		rdb:    rdb,
		setKey: prefix + ":log",
		seqKey: prefix + ":log:seq",
	}
}

func (l *redisLog) Append(ctx context.Context, evt events.DomainEvent) (int64, error) {
	pos, err := l.rdb.Incr(ctx, l.seqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("event log position: %w", err)
	}
	raw, err := json.Marshal(Entry{Position: pos, Event: evt})
	if err != nil {
		return 0, fmt.Errorf("event log marshal: %w", err)
	}
	if err := l.rdb.ZAdd(ctx, l.setKey, goredis.Z{Score: float64(pos), Member: raw}).Err(); err != nil {
		return 0, fmt.Errorf("event log append: %w", err)
	}
	return pos, nil
}

func (l *redisLog) Range(ctx context.Context, fromPosition int64) ([]Entry, error) {
	raws, err := l.rdb.ZRangeByScore(ctx, l.setKey, &goredis.ZRangeBy{
		Min: fmt.Sprintf("(%d", fromPosition),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("event log range: %w", err)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			l.log.Warn("dropping malformed event log entry", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *redisLog) Count(ctx context.Context) (int64, error) {
	return l.rdb.ZCard(ctx, l.setKey).Result()
}

func (l *redisLog) Trim(ctx context.Context, max int64) error {
	if max <= 0 {
		return nil
	}
	count, err := l.rdb.ZCard(ctx, l.setKey).Result()
	if err != nil {
		return fmt.Errorf("event log count: %w", err)
	}
	if count <= max {
		return nil
	}
	return l.rdb.ZRemRangeByRank(ctx, l.setKey, 0, count-max-1).Err()
}
