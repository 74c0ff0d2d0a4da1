package cache

import (
	"errors"
	"time"
)

// LayeredCache checks memory first and falls back to disk, promoting disk hits
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayered builds a layered cache from two caches
func NewLayered(memory, disk Cache) *LayeredCache {
	return &LayeredCache{memory: memory, disk: disk}
}

// NewLayeredCache creates the default memory + disk combination
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayered(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL))
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
