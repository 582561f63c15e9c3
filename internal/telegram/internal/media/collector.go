package media

import (
	"sync"
	"time"
)

// Collector groups files a user sends in quick succession, an album arrives as separate
// messages. The callback runs once per window after delay has passed without new files.
type Collector struct {
	windows map[int64]*Window
	delay   time.Duration
	mu      sync.Mutex
}

type Window struct {
	Files []File
	Timer *time.Timer
}

func NewCollector(delay time.Duration) *Collector {
	return &Collector{
		windows: make(map[int64]*Window),
		delay:   delay,
	}
}

func (c *Collector) Collect(userID int64, f File, onFlush func(userID int64, files []File)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window, ok := c.windows[userID]
	if !ok {
		window = &Window{}
		c.windows[userID] = window
	}
	window.Files = append(window.Files, f)

	if window.Timer != nil {
		window.Timer.Stop()
	}
	window.Timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		current, ok := c.windows[userID]
		if !ok || current != window {
			c.mu.Unlock()
			return
		}
		delete(c.windows, userID)
		files := window.Files
		c.mu.Unlock()

		onFlush(userID, files)
	})
}

// Drop forgets the open window of a user without flushing it.
func (c *Collector) Drop(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if window, ok := c.windows[userID]; ok {
		window.Timer.Stop()
		delete(c.windows, userID)
	}
}
