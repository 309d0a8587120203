package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

func (c *Cache) ClaimCooldown(ctx context.Context, ch entity.Channel, identifier string, ttl time.Duration) (_ time.Duration, _ bool, err error) {
	ctx, span := c.startSpan(ctx, "ClaimCooldown")
	defer func() { c.endSpan(span, err) }()

	key := cooldownKey(ch, identifier)
	for range 2 {
		claimed, sErr := c.client.SetNX(ctx, key, "1", ttl).Result()
		if sErr != nil {
			err = sErr
			return 0, false, err
		}
		if claimed {
			return 0, true, nil
		}

		wait, pErr := c.client.PTTL(ctx, key).Result()
		if pErr != nil {
			err = pErr
			return 0, false, err
		}
		switch {
		case wait == -2:
			// expired between SETNX and PTTL, claim again
			continue
		case wait <= 0:
			return ttl, false, nil
		default:
			return wait, false, nil
		}
	}

	return ttl, false, nil
}

func (c *Cache) ReleaseCooldown(ctx context.Context, ch entity.Channel, identifier string) (err error) {
	ctx, span := c.startSpan(ctx, "ReleaseCooldown")
	defer func() { c.endSpan(span, err) }()

	err = c.client.Del(ctx, cooldownKey(ch, identifier)).Err()
	return err
}

func (c *Cache) QuotaUsed(ctx context.Context, ch entity.Channel, identifier string) (_ int64, _ time.Duration, err error) {
	ctx, span := c.startSpan(ctx, "QuotaUsed")
	defer func() { c.endSpan(span, err) }()

	key := quotaKey(ch, identifier)
	var (
		get  *redis.StringCmd
		pttl *redis.DurationCmd
	)
	_, err = c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, key)
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}
	err = nil

	used, gErr := get.Int64()
	if errors.Is(gErr, redis.Nil) {
		return 0, 0, nil
	}
	if gErr != nil {
		err = gErr
		return 0, 0, err
	}

	resetIn := pttl.Val()
	if resetIn < 0 {
		resetIn = 0
	}

	return used, resetIn, nil
}

// IncrementQuota counts one issuance. The window starts at the first
// increment and is never extended by later ones.
func (c *Cache) IncrementQuota(ctx context.Context, ch entity.Channel, identifier string, window time.Duration) (err error) {
	ctx, span := c.startSpan(ctx, "IncrementQuota")
	defer func() { c.endSpan(span, err) }()

	key := quotaKey(ch, identifier)
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		return nil
	})
	return err
}
