// internal/storage/leveldb/client.go
package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/models"
)

const (
	layoutPrefix = "layout:"
	capacityKey  = "pref:capacity"
)

// CacheEntry wraps every stored value. A zero ExpiresAt never expires.
type CacheEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (e CacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Client stores fetched job layouts for a limited time and the operator's
// display preferences indefinitely. Execution history is never stored.
type Client struct {
	db              *leveldb.DB
	ttl             time.Duration
	cleanupInterval time.Duration
	mutex           sync.RWMutex
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

func NewClient(cfg config.LevelDBConfig) (*Client, error) {
	opts := &opt.Options{
		CompactionTableSize: 2 * 1024 * 1024, // 2MB
		WriteBuffer:         1 * 1024 * 1024, // 1MB
	}

	db, err := leveldb.OpenFile(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	client := &Client{
		db:              db,
		ttl:             cfg.LayoutTTL(),
		cleanupInterval: time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	go client.startCleanupRoutine()

	return client, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
		err = c.db.Close()
	})
	return err
}

func (c *Client) put(key string, value []byte, ttl time.Duration) error {
	entry := CacheEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.db.Put([]byte(key), data, nil)
}

// get returns nil without error when key is absent or expired
func (c *Client) get(key string) ([]byte, error) {
	c.mutex.RLock()
	data, err := c.db.Get([]byte(key), nil)
	c.mutex.RUnlock()
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if entry.expired(time.Now()) {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if err := c.db.Delete([]byte(key), nil); err != nil {
			return nil, fmt.Errorf("failed to delete expired entry %s: %w", key, err)
		}
		return nil, nil
	}

	return entry.Value, nil
}

// PutLayout caches layout under its job name
func (c *Client) PutLayout(layout *models.JobLayout) error {
	data, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("failed to marshal layout %s: %w", layout.Name, err)
	}
	return c.put(layoutPrefix+layout.Name, data, c.ttl)
}

// GetLayout returns the cached layout of job, or nil if there is none
func (c *Client) GetLayout(job string) (*models.JobLayout, error) {
	data, err := c.get(layoutPrefix + job)
	if err != nil || data == nil {
		return nil, err
	}

	var layout models.JobLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout %s: %w", job, err)
	}
	return &layout, nil
}

// PutCapacity remembers the display capacity chosen by the operator
func (c *Client) PutCapacity(capacity int) error {
	return c.put(capacityKey, []byte(strconv.Itoa(capacity)), 0)
}

// GetCapacity returns the remembered display capacity, if any
func (c *Client) GetCapacity() (int, bool, error) {
	data, err := c.get(capacityKey)
	if err != nil || data == nil {
		return 0, false, err
	}
	capacity, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse stored capacity: %w", err)
	}
	return capacity, true, nil
}

func (c *Client) startCleanupRoutine() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Client) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	iter := c.db.NewIterator(util.BytesPrefix([]byte(layoutPrefix)), nil)
	defer iter.Release()

	now := time.Now()
	var keysToDelete [][]byte

	for iter.Next() {
		var entry CacheEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}

		if entry.expired(now) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.db.Delete(key, nil)
	}
}
