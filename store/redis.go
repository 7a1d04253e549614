package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/resilience"
)

// Key layout:
//
//	{prefix}:doc:{id}        current serialized document (JSON), version field inside
//	{prefix}:rev:{id}        list of past serialized documents, newest first (LPUSH + LTRIM)

// putScript is an atomic compare-and-set on the stored document's version.
// It reads the current document (if any), checks its "version" field against
// ARGV[2] (expectedVersion), and only then overwrites it with ARGV[1]. If the
// key is absent, expectedVersion must be "0" for the write to proceed. On a
// successful overwrite the prior value is pushed onto the revision list and
// trimmed to ARGV[3] entries.
const putScript = `
local current = redis.call("GET", KEYS[1])
if current == false then
	if ARGV[2] ~= "0" then
		return "conflict"
	end
else
	local ok, decoded = pcall(cjson.decode, current)
	if not ok or tostring(decoded.version) ~= ARGV[2] then
		return "conflict"
	end
	if tonumber(ARGV[3]) > 0 then
		redis.call("LPUSH", KEYS[2], current)
		redis.call("LTRIM", KEYS[2], 0, tonumber(ARGV[3]) - 1)
	end
end
redis.call("SET", KEYS[1], ARGV[1])
return "ok"
`

// RedisGateway is a Gateway backed by Redis, used in production. The
// compare-and-set on Put runs as a single Lua script so a concurrent writer
// can never observe a torn update between the version check and the set.
type RedisGateway struct {
	client          *redis.Client
	keyPrefix       string
	revisionHistory int
	putScript       *redis.Script
	breaker         *resilience.CircuitBreaker
	retry           *resilience.RetryConfig
}

// NewRedisGateway creates a Gateway against an already-constructed Redis
// client. revisionHistory bounds how many past versions are retained for
// GetAtVersion; 0 disables undo. Get and GetAtVersion reads are guarded by
// a circuit breaker and a short retry schedule, since a transient Redis
// blip should not surface as a document-load failure to the Change Engine;
// Put is guarded by the breaker alone (see guardedRead).
func NewRedisGateway(client *redis.Client, keyPrefix string, revisionHistory int) *RedisGateway {
	if keyPrefix == "" {
		keyPrefix = "wayfarer:itinerary"
	}
	return &RedisGateway{
		client:          client,
		keyPrefix:       keyPrefix,
		revisionHistory: revisionHistory,
		putScript:       redis.NewScript(putScript),
		breaker: resilience.New(core.CircuitBreakerParams{
			Name: "store.redis",
		}),
		retry: resilience.DefaultRetryConfig(),
	}
}

// guardedRead runs a read-only fn (Get, GetAtVersion) through the gateway's
// circuit breaker with a short retry schedule: transient Redis blips are
// safe to retry on a read. Put is guarded by the breaker alone (see Put) -
// a version conflict is Put's normal outcome on contention, not a transient
// failure, so it is never retried at this layer.
func (g *RedisGateway) guardedRead(ctx context.Context, fn func() error) error {
	return resilience.Retry(ctx, g.retry, func() error {
		return g.breaker.Execute(ctx, fn)
	})
}

func (g *RedisGateway) docKey(itineraryID string) string {
	return fmt.Sprintf("%s:doc:%s", g.keyPrefix, itineraryID)
}

func (g *RedisGateway) revKey(itineraryID string) string {
	return fmt.Sprintf("%s:rev:%s", g.keyPrefix, itineraryID)
}

func (g *RedisGateway) Get(ctx context.Context, itineraryID string) (*itinerary.Itinerary, error) {
	var raw string
	err := g.guardedRead(ctx, func() error {
		var getErr error
		raw, getErr = g.client.Get(ctx, g.docKey(itineraryID)).Result()
		return getErr
	})
	if errors.Is(err, redis.Nil) {
		return nil, core.NewFrameworkError("store.Get", "LoadFailed", core.ErrLoadFailed)
	}
	if err != nil {
		return nil, &core.FrameworkError{
			Op: "store.Get", Kind: "LoadFailed", ID: itineraryID,
			Message: fmt.Sprintf("store.Get: redis error: %v", err),
			Err:     core.ErrLoadFailed,
		}
	}

	var doc itinerary.Itinerary
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &core.FrameworkError{
			Op: "store.Get", Kind: "LoadFailed", ID: itineraryID,
			Message: fmt.Sprintf("store.Get: corrupt document: %v", err),
			Err:     core.ErrLoadFailed,
		}
	}
	return &doc, nil
}

func (g *RedisGateway) Put(ctx context.Context, itineraryID string, doc *itinerary.Itinerary, expectedVersion int) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return &core.FrameworkError{
			Op: "store.Put", Kind: "PersistFailed", ID: itineraryID,
			Message: fmt.Sprintf("store.Put: encode failed: %v", err),
			Err:     core.ErrPersistFailed,
		}
	}

	var result interface{}
	breakerErr := g.breaker.Execute(ctx, func() error {
		var runErr error
		result, runErr = g.putScript.Run(ctx, g.client,
			[]string{g.docKey(itineraryID), g.revKey(itineraryID)},
			string(encoded), expectedVersion, g.revisionHistory,
		).Result()
		return runErr
	})
	if breakerErr != nil {
		return &core.FrameworkError{
			Op: "store.Put", Kind: "PersistFailed", ID: itineraryID,
			Message: fmt.Sprintf("store.Put: redis error: %v", breakerErr),
			Err:     core.ErrPersistFailed,
		}
	}
	if result != "ok" {
		return &core.FrameworkError{
			Op: "store.Put", Kind: "VersionConflict", ID: itineraryID,
			Message: fmt.Sprintf("store.Put: version conflict, expected %d", expectedVersion),
			Err:     core.ErrVersionConflict,
		}
	}
	return nil
}

func (g *RedisGateway) GetAtVersion(ctx context.Context, itineraryID string, version int) (*itinerary.Itinerary, error) {
	if current, err := g.Get(ctx, itineraryID); err == nil && current.Version == version {
		return current, nil
	}

	var entries []string
	err := g.guardedRead(ctx, func() error {
		var lrangeErr error
		entries, lrangeErr = g.client.LRange(ctx, g.revKey(itineraryID), 0, -1).Result()
		return lrangeErr
	})
	if err != nil {
		return nil, &core.FrameworkError{
			Op: "store.GetAtVersion", Kind: "LoadFailed", ID: itineraryID,
			Message: fmt.Sprintf("store.GetAtVersion: redis error: %v", err),
			Err:     core.ErrLoadFailed,
		}
	}
	for _, raw := range entries {
		var doc itinerary.Itinerary
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		if doc.Version == version {
			return &doc, nil
		}
	}
	return nil, &core.FrameworkError{
		Op: "store.GetAtVersion", Kind: "LoadFailed", ID: itineraryID,
		Message: fmt.Sprintf("store.GetAtVersion: version %d not retained in revision history", version),
		Err:     core.ErrLoadFailed,
	}
}

// NewRedisClient is a small convenience wrapper matching the options pattern
// used across the rest of the domain stack.
func NewRedisClient(url string, dialTimeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: invalid redis url: %w", err)
	}
	if dialTimeout > 0 {
		opts.DialTimeout = dialTimeout
	}
	return redis.NewClient(opts), nil
}
