package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"concord/internal/resource"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

const keyPrefix = "concord:stock:"

// reserveScript performs compare-and-reserve inside Redis.
// KEYS[1] = stock key, KEYS[2] = demand sorted set
// ARGV[1] = quantity, ARGV[2] = unix time (seconds, fractional), ARGV[3] = member id
// Returns {status, available}: status 1 reserved, 0 insufficient, -1 missing.
var reserveScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
    return {-1, "0"}
end
local available = tonumber(raw)
local qty = tonumber(ARGV[1])
if available < qty then
    return {0, raw}
end
local left = redis.call("INCRBYFLOAT", KEYS[1], -qty)
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3] .. ":" .. ARGV[1])
return {1, left}
`)

// RedisStore keeps stock as float strings so several engine instances can
// share one ledger. Reservation history lives in a sorted set scored by time.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func stockKeyFor(domain id.DomainID, resourceType string) string {
	return keyPrefix + string(domain) + ":" + resourceType
}

func demandKeyFor(domain id.DomainID, resourceType string) string {
	return "concord:demand:" + string(domain) + ":" + resourceType
}

func indexKeyFor(domain id.DomainID) string {
	return "concord:stock-index:" + string(domain)
}

func (s *RedisStore) Seed(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error {
	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, stockKeyFor(domain, resourceType), formatQty(qty), 0)
	pipe.SAdd(ctx, indexKeyFor(domain), resourceType)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed stock: %w", err)
	}
	return nil
}

func (s *RedisStore) Deposit(ctx context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.IncrByFloat(ctx, stockKeyFor(domain, resourceType), qty)
	pipe.SAdd(ctx, indexKeyFor(domain), resourceType)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("deposit stock: %w", err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Reserve(ctx context.Context, domain id.DomainID, resourceType string, qty float64, at time.Time) (float64, error) {
	keys := []string{stockKeyFor(domain, resourceType), demandKeyFor(domain, resourceType)}
	score := float64(at.UnixMicro()) / 1e6
	res, err := reserveScript.Run(ctx, s.client, keys, formatQty(qty), score, uuid.NewString()).Slice()
	if err != nil {
		return 0, fmt.Errorf("reserve stock: %w", err)
	}
	if len(res) != 2 {
		return 0, errors.New("reserve stock: unexpected script reply")
	}
	status, _ := res[0].(int64)
	available, err := parseQty(res[1])
	if err != nil {
		return 0, err
	}
	switch status {
	case 1:
		return available, nil
	case 0:
		return available, sentinel.ErrInsufficient
	default:
		return 0, sentinel.ErrNotFound
	}
}

func (s *RedisStore) Available(ctx context.Context, domain id.DomainID, resourceType string) (float64, error) {
	v, err := s.client.Get(ctx, stockKeyFor(domain, resourceType)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return v, nil
}

func (s *RedisStore) ReservedSince(ctx context.Context, domain id.DomainID, resourceType string, since time.Time) (float64, error) {
	minScore := strconv.FormatFloat(float64(since.UnixMicro())/1e6, 'f', -1, 64)
	members, err := s.client.ZRangeByScore(ctx, demandKeyFor(domain, resourceType), &redis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
	if err != nil {
		return 0, fmt.Errorf("read demand: %w", err)
	}
	var total float64
	for _, m := range members {
		// member = "<uuid>:<qty>"
		for i := len(m) - 1; i >= 0; i-- {
			if m[i] == ':' {
				q, err := strconv.ParseFloat(m[i+1:], 64)
				if err == nil {
					total += q
				}
				break
			}
		}
	}
	return total, nil
}

func (s *RedisStore) ListByDomain(ctx context.Context, domain id.DomainID) ([]resource.Stock, error) {
	types, err := s.client.SMembers(ctx, indexKeyFor(domain)).Result()
	if err != nil {
		return nil, fmt.Errorf("list stock index: %w", err)
	}
	sort.Strings(types)
	out := make([]resource.Stock, 0, len(types))
	for _, rt := range types {
		v, err := s.Available(ctx, domain, rt)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, resource.Stock{Domain: domain, ResourceType: rt, Available: v})
	}
	return out, nil
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func parseQty(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unexpected quantity type %T", v)
	}
}
