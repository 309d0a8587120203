package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Cache keeps the live passcode entry and the throttle counters in redis.
type Cache struct {
	client redis.Cmdable
	ins    instrument.Instrumentation
}

func NewCache(client redis.Cmdable, ins instrument.Instrumentation) *Cache {
	return &Cache{client: client, ins: ins}
}

func entryKey(ch entity.Channel, identifier string) string {
	return "otp:" + ch.String() + ":" + identifier
}

func cooldownKey(ch entity.Channel, identifier string) string {
	return "cooldown:" + ch.String() + ":" + identifier
}

func quotaKey(ch entity.Channel, identifier string) string {
	return "ratelimit:identifier:" + ch.String() + ":" + identifier
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("otp.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func decodeEntry(ctx context.Context, key string, raw []byte) (*entity.CacheEntry, error) {
	var entry entity.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		slog.WarnContext(ctx, "malformed otp cache entry treated as absent", "key", key, "error", err)
		return nil, goerror.ErrNotFound
	}
	return &entry, nil
}

func (c *Cache) Get(ctx context.Context, ch entity.Channel, identifier string) (_ *entity.CacheEntry, err error) {
	ctx, span := c.startSpan(ctx, "Get")
	defer func() { c.endSpan(span, err) }()

	key := entryKey(ch, identifier)
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		err = goerror.ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return decodeEntry(ctx, key, raw)
}

func (c *Cache) Set(ctx context.Context, ch entity.Channel, identifier string, entry entity.CacheEntry, ttl time.Duration) (err error) {
	ctx, span := c.startSpan(ctx, "Set")
	defer func() { c.endSpan(span, err) }()

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = c.client.Set(ctx, entryKey(ch, identifier), raw, ttl).Err()
	return err
}

func (c *Cache) Delete(ctx context.Context, ch entity.Channel, identifier string) (err error) {
	ctx, span := c.startSpan(ctx, "Delete")
	defer func() { c.endSpan(span, err) }()

	err = c.client.Del(ctx, entryKey(ch, identifier)).Err()
	return err
}

// consumeScript spends one attempt on the entry of ARGV[1] in a single
// round trip. Replies {0, entry} when recorded, {1, entry} when exhausted
// and {2, ""} when the entry is gone, unreadable, or belongs to another event.
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return {2, ''}
end
local ok, entry = pcall(cjson.decode, raw)
if not ok or type(entry) ~= 'table' then
	return {2, ''}
end
if tostring(entry['event_id']) ~= ARGV[1] then
	return {2, ''}
end
local attempts = tonumber(entry['attempts']) or 0
local max = tonumber(entry['max_attempts']) or 0
if attempts >= max then
	return {1, raw}
end
entry['attempts'] = attempts + 1
local out = cjson.encode(entry)
redis.call('SET', KEYS[1], out, 'KEEPTTL')
return {0, out}
`)

func (c *Cache) ConsumeAttempt(ctx context.Context, ch entity.Channel, identifier string, eventID int64) (_ *entity.CacheEntry, _ entity.ConsumeResult, err error) {
	ctx, span := c.startSpan(ctx, "ConsumeAttempt")
	defer func() { c.endSpan(span, err) }()

	key := entryKey(ch, identifier)
	reply, err := consumeScript.Run(ctx, c.client, []string{key}, strconv.FormatInt(eventID, 10)).Slice()
	if err != nil {
		return nil, entity.ConsumeMissing, err
	}
	if len(reply) != 2 {
		err = fmt.Errorf("cache: unexpected consume reply of %d elements", len(reply))
		return nil, entity.ConsumeMissing, err
	}

	status, _ := reply[0].(int64)
	payload, _ := reply[1].(string)

	result := entity.ConsumeResult(status)
	if result == entity.ConsumeMissing {
		return nil, entity.ConsumeMissing, nil
	}

	entry, dErr := decodeEntry(ctx, key, []byte(payload))
	if dErr != nil {
		return nil, entity.ConsumeMissing, nil
	}

	return entry, result, nil
}
