package hydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Channel is the well-known location a hydration result is published to and
// read back from.
type Channel interface {
	Publish(res *Result) error
	Load() (*Result, bool, error)
}

// MemoryChannel publishes in-process. The default for embedded use.
type MemoryChannel struct {
	mu  sync.RWMutex
	res *Result
}

// NewMemoryChannel returns an empty in-memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

func (c *MemoryChannel) Publish(res *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res = res
	return nil
}

func (c *MemoryChannel) Load() (*Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.res == nil {
		return nil, false, nil
	}
	return c.res, true, nil
}

// FileChannel publishes the result as a JSON file, for tests driving an
// application in another process. Writes go through a temp file and rename
// so readers never observe a partial result.
type FileChannel struct {
	Path string
}

// NewFileChannel publishes to the given path.
func NewFileChannel(path string) *FileChannel {
	return &FileChannel{Path: path}
}

func (c *FileChannel) Publish(res *Result) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

func (c *FileChannel) Load() (*Result, bool, error) {
	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read result: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("failed to parse result: %w", err)
	}
	return &res, true, nil
}

// Wait blocks until a result is published or ctx ends. It watches the
// result directory with fsnotify and keeps a coarse poll ticking as a
// fallback for filesystems that drop events.
func (c *FileChannel) Wait(ctx context.Context) (*Result, error) {
	if res, ok, err := c.Load(); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch result directory: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		// Re-check after arming the watcher to close the publish race.
		if res, ok, err := c.Load(); err != nil {
			return nil, err
		} else if ok {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-watcher.Events:
		case err := <-watcher.Errors:
			if err != nil {
				return nil, fmt.Errorf("watcher failed: %w", err)
			}
		case <-ticker.C:
		}
	}
}
