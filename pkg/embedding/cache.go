package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"

	"note-search-go/pkg/log"
	"note-search-go/pkg/metrics"
)

const cacheKeyPrefix = "notesearch:emb:"

// ErrCacheMiss 表示缓存中没有对应的向量。
var ErrCacheMiss = errors.New("embedding cache miss")

// Store 是向量缓存所需的最小键值接口。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedClient 在内部 Client 之前加一层缓存，缓存读写失败只记录日志。
type CachedClient struct {
	inner Client
	store Store
	model string
}

// NewCachedClient 创建缓存装饰器，model 参与缓存键，换模型后旧向量不会被复用。
func NewCachedClient(inner Client, store Store, model string) *CachedClient {
	return &CachedClient{inner: inner, store: store, model: model}
}

// CreateEmbedding 优先返回缓存中的向量，未命中时调用内部 Client 并回写缓存。
func (c *CachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		vec, decErr := decodeVector(data)
		if decErr == nil {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return vec, nil
		}
		log.Warnf("[EmbeddingCache] 缓存数据损坏, key: %s, error: %v", key, decErr)
	case !errors.Is(err, ErrCacheMiss):
		log.Warnf("[EmbeddingCache] 读取缓存失败, key: %s, error: %v", key, err)
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, encodeVector(vec)); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败, key: %s, error: %v", key, err)
	}
	return vec, nil
}

func (c *CachedClient) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

// RedisStore 用 Redis 实现 Store。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore 创建一个 Redis 缓存，ttl 为 0 表示永不过期。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Get 读取缓存，键不存在时返回 ErrCacheMiss。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

// Set 写入缓存。
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, s.ttl).Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
