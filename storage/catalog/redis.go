package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

const keyPrefix = "examroutine:catalog:"

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// RedisCache is a read-through cache in front of another Catalog.
// Redis failures are logged and fall through to the wrapped catalog.
type RedisCache struct {
	client *redis.Client
	next   exam.Catalog
	ttl    time.Duration
	logger core.Logger
}

var _ exam.Catalog = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, next exam.Catalog, ttl time.Duration, logger core.Logger) *RedisCache {
	return &RedisCache{client: client, next: next, ttl: ttl, logger: logger}
}

func key(schoolID string, parts ...string) string {
	k := keyPrefix + schoolID
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func cached[T any](ctx context.Context, c *RedisCache, k string, load func() (T, error)) (T, error) {
	if data, err := c.client.Get(ctx, k).Bytes(); err == nil {
		var v T
		if err = json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		c.logger.Warn("catalog cache entry is corrupt", err, map[string]interface{}{"key": k})
	} else if err != redis.Nil {
		c.logger.Warn("catalog cache read failed", err, map[string]interface{}{"key": k})
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v, errors.Wrap(err, "json.Marshal()")
	}
	if err = c.client.Set(ctx, k, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", err, map[string]interface{}{"key": k})
	}
	return v, nil
}

func (c *RedisCache) Classes(ctx context.Context, schoolID string) ([]exam.Class, error) {
	return cached(ctx, c, key(schoolID, "classes"), func() ([]exam.Class, error) {
		return c.next.Classes(ctx, schoolID)
	})
}

func (c *RedisCache) Subjects(ctx context.Context, schoolID string) ([]exam.Subject, error) {
	return cached(ctx, c, key(schoolID, "subjects"), func() ([]exam.Subject, error) {
		return c.next.Subjects(ctx, schoolID)
	})
}

func (c *RedisCache) AcademicYears(ctx context.Context, schoolID string) ([]exam.AcademicYear, error) {
	return cached(ctx, c, key(schoolID, "academic_years"), func() ([]exam.AcademicYear, error) {
		return c.next.AcademicYears(ctx, schoolID)
	})
}

func (c *RedisCache) AssessmentCategories(ctx context.Context, schoolID string) ([]exam.AssessmentCategory, error) {
	return cached(ctx, c, key(schoolID, "assessment_categories"), func() ([]exam.AssessmentCategory, error) {
		return c.next.AssessmentCategories(ctx, schoolID)
	})
}

func (c *RedisCache) TeacherClasses(ctx context.Context, schoolID, teacherID string) ([]string, error) {
	return cached(ctx, c, key(schoolID, "teachers", teacherID), func() ([]string, error) {
		return c.next.TeacherClasses(ctx, schoolID, teacherID)
	})
}

// Invalidate drops every cached entry of a school.
func (c *RedisCache) Invalidate(ctx context.Context, schoolID string) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, key(schoolID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "redis del")
}

// Healthy verifies redis connectivity.
func (c *RedisCache) Healthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}
