package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/reflectscan-tool/internal/config"
	"github.com/reflectscan-tool/internal/logger"
	"github.com/reflectscan-tool/pkg/models"
	"github.com/reflectscan-tool/pkg/utils"
)

// ErrCacheMiss is returned when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

const scanPrefix = "scan"

// Cache interface defines caching operations
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Manager stores scan results in Redis when configured, otherwise on disk
type Manager struct {
	log     logger.Logger
	backend Cache
	ttl     time.Duration
	key     []byte // nil when encryption is off
}

// NewManager creates a new cache manager. Redis is used when an address is
// configured and answers a ping; otherwise results go to files under the output dir.
func NewManager(cfg *config.Config, log logger.Logger) (*Manager, error) {
	var backend Cache
	if client := initRedis(cfg.Cache, log); client != nil {
		backend = NewRedisCache(client, log)
		log.Debug("Using Redis cache backend", "addr", cfg.Cache.RedisAddr)
	} else {
		fc, err := NewFileCache(filepath.Join(cfg.OutputDir, ".scans"))
		if err != nil {
			return nil, err
		}
		backend = fc
		log.Debug("Using file cache backend", "dir", fc.dir)
	}
	return NewManagerWithBackend(backend, cfg.Cache, log)
}

// NewManagerWithBackend wraps an existing backend
func NewManagerWithBackend(backend Cache, cfg config.CacheConfig, log logger.Logger) (*Manager, error) {
	m := &Manager{
		log:     log,
		backend: backend,
		ttl:     time.Duration(cfg.TTL) * time.Second,
	}
	if cfg.Encrypt {
		if cfg.Secret == "" {
			return nil, fmt.Errorf("%w: cache encryption needs a secret", config.ErrInvalidConfig)
		}
		m.key = utils.DeriveKey(cfg.Secret)
		log.Debug("Cache encryption enabled", "secret", utils.MaskSensitiveData(cfg.Secret))
	}
	return m, nil
}

// Get retrieves a value from cache
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := m.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if m.key != nil && len(data) > 0 {
		decrypted, err := utils.Open(data, m.key)
		if err != nil {
			m.log.Error("Failed to decrypt cached data", "key", key, "error", err)
			return nil, err
		}
		return decrypted, nil
	}

	return data, nil
}

// Set stores a value in cache
func (m *Manager) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	data := value

	if m.key != nil {
		encrypted, err := utils.Seal(data, m.key)
		if err != nil {
			m.log.Error("Failed to encrypt cache data", "key", key, "error", err)
			return err
		}
		data = encrypted
	}

	return m.backend.Set(ctx, key, data, expiration)
}

// Delete removes a value from cache
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.backend.Delete(ctx, key)
}

// DeleteScan removes a stored scan. ErrCacheMiss means there was nothing to remove.
func (m *Manager) DeleteScan(ctx context.Context, scanID string) error {
	key := CacheKey(scanPrefix, scanID)
	ok, err := m.backend.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete scan %s: %w", scanID, err)
	}
	if !ok {
		return fmt.Errorf("failed to delete scan %s: %w", scanID, ErrCacheMiss)
	}
	if err := m.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete scan %s: %w", scanID, err)
	}
	m.log.Debug("Deleted scan results", "scan_id", scanID)
	return nil
}

// GetJSON retrieves and unmarshals JSON data from cache
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return ErrCacheMiss
	}

	return json.Unmarshal(data, dest)
}

// SetJSON marshals and stores JSON data in cache
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return m.Set(ctx, key, data, expiration)
}

// CacheKey generates a standardized cache key
func CacheKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// SaveScan stores results under scan:<id> for the configured TTL
func (m *Manager) SaveScan(ctx context.Context, results *models.ScanResults) error {
	if err := m.SetJSON(ctx, CacheKey(scanPrefix, results.ScanID), results, m.ttl); err != nil {
		return fmt.Errorf("failed to save scan %s: %w", results.ScanID, err)
	}
	m.log.Debug("Saved scan results", "scan_id", results.ScanID, "ttl", m.ttl)
	return nil
}

// LoadScan loads a stored scan. ErrCacheMiss means no such scan or it expired.
func (m *Manager) LoadScan(ctx context.Context, scanID string) (*models.ScanResults, error) {
	var results models.ScanResults
	if err := m.GetJSON(ctx, CacheKey(scanPrefix, scanID), &results); err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}
	return &results, nil
}

// ListScans returns the ids of stored scans, sorted
func (m *Manager) ListScans(ctx context.Context) ([]string, error) {
	keys, err := m.backend.Keys(ctx, CacheKey(scanPrefix, "*"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(scanPrefix)+1:])
	}
	sort.Strings(ids)
	return ids, nil
}

func initRedis(cfg config.CacheConfig, log logger.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	fields := []interface{}{"addr", cfg.RedisAddr, "db", cfg.RedisDB}
	if cfg.RedisPassword != "" {
		fields = append(fields, "password", utils.MaskSensitiveData(cfg.RedisPassword))
	}
	log.Debug("Connecting to Redis", fields...)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not available, falling back to file cache", "addr", cfg.RedisAddr, "error", err)
		client.Close()
		return nil
	}

	return client
}

// RedisCache implements Cache interface using Redis
type RedisCache struct {
	client *redis.Client
	log    logger.Logger
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		log:    log,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	return result, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := r.client.Exists(ctx, key).Result()
	return result > 0, err
}

func (r *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// MemoryCache implements Cache interface using in-memory storage
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryCache creates an in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]cacheItem)}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	item, exists := m.data[key]
	if !exists || item.expired(time.Now()) {
		return nil, ErrCacheMiss
	}

	return item.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	item := cacheItem{
		value: value,
	}

	if expiration > 0 {
		item.expiration = time.Now().Add(expiration)
	}

	m.data[key] = item
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	item, exists := m.data[key]
	return exists && !item.expired(time.Now()), nil
}

func (m *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := time.Now()
	keys := make([]string, 0, len(m.data))
	for key, item := range m.data {
		if item.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}

	return keys, nil
}
