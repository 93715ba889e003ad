package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExt = ".json"

// FileCache keeps one file per key so stored scans survive between runs
type FileCache struct {
	dir   string
	mutex sync.Mutex
}

type fileEntry struct {
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Value     []byte    `json:"value"`
}

// NewFileCache creates dir if needed
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// key names may hold ':' and other characters that are not portable in file names
func (f *FileCache) file(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+fileExt)
}

func (f *FileCache) read(name string) (*fileEntry, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", name, err)
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		os.Remove(name)
		return nil, ErrCacheMiss
	}
	return &e, nil
}

func (f *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	e, err := f.read(f.file(key))
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (f *FileCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	e := fileEntry{Value: value}
	if expiration > 0 {
		e.ExpiresAt = time.Now().Add(expiration)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	// write then rename so a reader never sees a partial file
	tmp := f.file(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return os.Rename(tmp, f.file(key))
}

func (f *FileCache) Delete(ctx context.Context, key string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	err := os.Remove(f.file(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		key := string(raw)
		if ok, _ := path.Match(pattern, key); !ok {
			continue
		}
		if _, err := f.read(filepath.Join(f.dir, name)); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
