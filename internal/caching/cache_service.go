package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crmsaas/internal/models"
)

type CacheService interface {
	// Tenant resolution caching. Resolution runs on every request, so
	// lookups by name are cached ahead of the control database.
	GetTenant(ctx context.Context, name string) (*models.Tenant, error)
	SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error
	DeleteTenant(ctx context.Context, name string) error

	// One-time login codes.
	SetOTP(ctx context.Context, email, code string, ttl time.Duration) error
	GetOTP(ctx context.Context, email string) (string, error)
	DeleteOTP(ctx context.Context, email string) error

	// Rate limiting.
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)

	// Generic string operations.
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss distinguishes an absent key from a transport failure.
var ErrCacheMiss = redis.Nil

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisCacheService{client: client}
}

func tenantKey(name string) string {
	return fmt.Sprintf("crm:tenant:%s", name)
}

func otpKey(email string) string {
	return fmt.Sprintf("crm:otp:%s", email)
}

func (r *redisCacheService) GetTenant(ctx context.Context, name string) (*models.Tenant, error) {
	data, err := r.client.Get(ctx, tenantKey(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}
	var tenant models.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *redisCacheService) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	data, err := json.Marshal(tenant)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, tenantKey(tenant.Name), data, ttl).Err()
}

func (r *redisCacheService) DeleteTenant(ctx context.Context, name string) error {
	return r.client.Del(ctx, tenantKey(name)).Err()
}

func (r *redisCacheService) SetOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	return r.client.Set(ctx, otpKey(email), code, ttl).Err()
}

func (r *redisCacheService) GetOTP(ctx context.Context, email string) (string, error) {
	return r.client.Get(ctx, otpKey(email)).Result()
}

func (r *redisCacheService) DeleteOTP(ctx context.Context, email string) error {
	return r.client.Del(ctx, otpKey(email)).Err()
}

// IncrementRateLimit bumps the counter for key and returns the new count.
// The window TTL is set on first increment only.
func (r *redisCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	rateKey := fmt.Sprintf("crm:ratelimit:%s", key)
	count, err := r.client.Incr(ctx, rateKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, rateKey, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (r *redisCacheService) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
