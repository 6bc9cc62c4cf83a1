package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gothglitter/storefront/pkg/database"
	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/repository"
)

const (
	stockPrefix = "stock:"
	holdPrefix  = "hold:"
	cartPrefix  = "cart:"
	touchedKey  = "cart:touched"
)

func stockKey(productID string) string { return stockPrefix + productID }
func holdKey(sessionID string) string  { return holdPrefix + sessionID }
func cartKey(sessionID string) string  { return cartPrefix + sessionID }

func millis(t time.Time) int64 { return t.UnixMilli() }

// HoldStore implements repository.HoldStore on Redis. Every multi-key
// change runs as a Lua script so stock and holds never disagree. It takes a
// single-node client; the scripts touch keys in different cluster slots.
type HoldStore struct {
	client *redis.Client
}

var _ repository.HoldStore = (*HoldStore)(nil)

func NewHoldStore(client *redis.Client) *HoldStore {
	return &HoldStore{client: client}
}

func (s *HoldStore) Reserve(ctx context.Context, sessionID, productID string, at time.Time) (int, error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "reserve", "EVALSHA reserve")
	n, err := reserveScript.Run(ctx, s.client,
		[]string{stockKey(productID), holdKey(sessionID), touchedKey},
		productID, sessionID, millis(at),
	).Int()
	end(err)
	if err != nil {
		return 0, fmt.Errorf("redis reserve: %w", err)
	}
	switch n {
	case -2:
		return 0, repository.ErrUnseeded
	case -1:
		return 0, apperrors.Exhausted(productID)
	}
	return n, nil
}

func (s *HoldStore) Release(ctx context.Context, sessionID, productID string, at time.Time) (bool, int, error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "release", "EVALSHA release")
	res, err := releaseScript.Run(ctx, s.client,
		[]string{stockKey(productID), holdKey(sessionID), cartKey(sessionID), touchedKey},
		productID, sessionID, millis(at),
	).Int64Slice()
	end(err)
	if err != nil {
		return false, 0, fmt.Errorf("redis release: %w", err)
	}
	return res[0] == 1, int(res[1]), nil
}

func (s *HoldStore) Commit(ctx context.Context, sessionID, productID string, n int, at time.Time) (int, int, error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "commit", "EVALSHA commit")
	res, err := commitScript.Run(ctx, s.client,
		[]string{stockKey(productID), holdKey(sessionID), cartKey(sessionID), touchedKey},
		productID, sessionID, millis(at), n,
	).Int64Slice()
	end(err)
	if err != nil {
		return 0, 0, fmt.Errorf("redis commit: %w", err)
	}
	if res[0] == -2 {
		return 0, 0, repository.ErrUnseeded
	}
	return int(res[0]), int(res[1]), nil
}

func (s *HoldStore) Uncommit(ctx context.Context, sessionID, productID string, n int, at time.Time) (int, error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "uncommit", "EVALSHA uncommit")
	q, err := uncommitScript.Run(ctx, s.client,
		[]string{holdKey(sessionID), cartKey(sessionID), touchedKey},
		productID, sessionID, millis(at), n,
	).Int()
	end(err)
	if err != nil {
		return 0, fmt.Errorf("redis uncommit: %w", err)
	}
	return q, nil
}

func (s *HoldStore) Holds(ctx context.Context, sessionID, productID string, at time.Time) (domain.Holds, error) {
	var pending, committed *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pending = pipe.HGet(ctx, holdKey(sessionID), productID)
		committed = pipe.HGet(ctx, cartKey(sessionID), productID)
		pipe.ZAdd(ctx, touchedKey, redis.Z{Score: float64(millis(at)), Member: sessionID})
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Holds{}, fmt.Errorf("redis holds: %w", err)
	}
	p, err := intOrZero(pending)
	if err != nil {
		return domain.Holds{}, err
	}
	c, err := intOrZero(committed)
	if err != nil {
		return domain.Holds{}, err
	}
	return domain.Holds{Pending: p, Committed: c}, nil
}

func (s *HoldStore) Items(ctx context.Context, sessionID string, at time.Time) (map[string]int, error) {
	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		all = pipe.HGetAll(ctx, cartKey(sessionID))
		pipe.ZAdd(ctx, touchedKey, redis.Z{Score: float64(millis(at)), Member: sessionID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis items: %w", err)
	}
	items := make(map[string]int, len(all.Val()))
	for id, raw := range all.Val() {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cart %s: bad quantity for %s: %w", sessionID, id, err)
		}
		if n > 0 {
			items[id] = n
		}
	}
	return items, nil
}

func (s *HoldStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	if err := s.client.ZAdd(ctx, touchedKey, redis.Z{Score: float64(millis(at)), Member: sessionID}).Err(); err != nil {
		return fmt.Errorf("redis touch: %w", err)
	}
	return nil
}

func (s *HoldStore) ReleaseAll(ctx context.Context, sessionID string, idleSince time.Time) (domain.Released, bool, error) {
	cutoff := ""
	if !idleSince.IsZero() {
		cutoff = strconv.FormatInt(millis(idleSince), 10)
	}

	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "release_all", "EVALSHA release_all")
	raw, err := releaseAllScript.Run(ctx, s.client,
		[]string{holdKey(sessionID), cartKey(sessionID), touchedKey},
		sessionID, stockPrefix, cutoff,
	).Slice()
	end(err)
	if err != nil {
		return domain.Released{}, false, fmt.Errorf("redis release all: %w", err)
	}

	out := domain.Released{SessionID: sessionID, Units: map[string]int{}}
	if len(raw) == 0 || raw[0] != int64(1) {
		return out, false, nil
	}
	for i := 1; i+1 < len(raw); i += 2 {
		id, _ := raw[i].(string)
		n, _ := raw[i+1].(int64)
		out.Units[id] = int(n)
	}
	return out, true, nil
}

func (s *HoldStore) IdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, touchedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(millis(cutoff), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis idle sessions: %w", err)
	}
	return ids, nil
}

func (s *HoldStore) Available(ctx context.Context, productID string) (int, error) {
	n, err := s.client.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, repository.ErrUnseeded
	}
	if err != nil {
		return 0, fmt.Errorf("redis get stock: %w", err)
	}
	return n, nil
}

func (s *HoldStore) Seed(ctx context.Context, productID string, qty int) (bool, error) {
	ok, err := s.client.SetNX(ctx, stockKey(productID), qty, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis seed stock: %w", err)
	}
	return ok, nil
}

func (s *HoldStore) SetStock(ctx context.Context, productID string, qty int) error {
	if err := s.client.Set(ctx, stockKey(productID), qty, 0).Err(); err != nil {
		return fmt.Errorf("redis set stock: %w", err)
	}
	return nil
}

func (s *HoldStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func intOrZero(cmd *redis.StringCmd) (int, error) {
	n, err := cmd.Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis hget: %w", err)
	}
	return n, nil
}
