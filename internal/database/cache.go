package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	userCachePrefix     = "relay:user:id:"
	defaultUserCacheTTL = 10 * time.Minute
)

// CachedRepository serves user lookups by id from redis and falls back to
// the wrapped repository on a miss. Presence updates invalidate the entry.
type CachedRepository struct {
	RelayRepository
	redis *redis.Client
	ttl   time.Duration
	log   *log.Logger
}

func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func NewCachedRepository(repo RelayRepository, client *redis.Client, ttl time.Duration, logger *log.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = defaultUserCacheTTL
	}

	return &CachedRepository{
		RelayRepository: repo,
		redis:           client,
		ttl:             ttl,
		log:             logger,
	}
}

func userCacheKey(id int) string {
	return userCachePrefix + strconv.Itoa(id)
}

func (r *CachedRepository) GetUserById(ctx context.Context, id int) (User, error) {
	key := userCacheKey(id)

	data, err := r.redis.Get(ctx, key).Bytes()
	if err == nil {
		var u User
		if err := json.Unmarshal(data, &u); err == nil {
			return u, nil
		}
		r.log.Printf("cache: unmarshal user %d: %v", id, err)
	} else if !errors.Is(err, redis.Nil) {
		r.log.Printf("cache: get user %d: %v", id, err)
	}

	u, err := r.RelayRepository.GetUserById(ctx, id)
	if err != nil {
		return User{}, err
	}

	r.store(ctx, u)
	return u, nil
}

func (r *CachedRepository) UpdatePresence(ctx context.Context, params UpdatePresenceParams) error {
	if err := r.RelayRepository.UpdatePresence(ctx, params); err != nil {
		return err
	}

	if err := r.redis.Del(ctx, userCacheKey(params.UserId)).Err(); err != nil {
		r.log.Printf("cache: invalidate user %d: %v", params.UserId, err)
	}

	return nil
}

func (r *CachedRepository) store(ctx context.Context, u User) {
	data, err := json.Marshal(u)
	if err != nil {
		r.log.Printf("cache: marshal user %d: %v", u.Id, err)
		return
	}

	if err := r.redis.Set(ctx, userCacheKey(u.Id), data, r.ttl).Err(); err != nil {
		r.log.Printf("cache: set user %d: %v", u.Id, err)
	}
}

func (r *CachedRepository) Close() error {
	return r.redis.Close()
}
