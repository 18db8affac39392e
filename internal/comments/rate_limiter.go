package comments

import (
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
)

const (
	// DefaultRateLimitWindow is the rolling interval comment counts are bounded over.
	DefaultRateLimitWindow = 5 * time.Minute
	// DefaultRateLimitMax is how many comments one user may post on one article per window.
	DefaultRateLimitMax = 10
)

// RateLimitConfig bounds comment creation per (user, article).
type RateLimitConfig struct {
	Window       time.Duration
	MaxPerWindow int
}

func (cfg RateLimitConfig) withDefaults() RateLimitConfig {
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = DefaultRateLimitMax
	}
	return cfg
}

// RateWindow holds recent comment creation instants for one (user, article) pair.
type RateWindow struct {
	UserID     string
	ArticleID  string
	Timestamps []time.Time
}

// rateLimiter keeps a sliding window per pair. Callers serialize admit and record
// for the same pair; the mutex only guards the map.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*RateWindow
	config  RateLimitConfig
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		windows: make(map[string]*RateWindow),
		config:  cfg.withDefaults(),
	}
}

// admit prunes stale instants from the pair's window and reports whether another
// comment fits.
func (l *rateLimiter) admit(userID, articleID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.windowLocked(userID, articleID)
	cutoff := now.Add(-l.config.Window)
	kept := window.Timestamps[:0]
	for _, instant := range window.Timestamps {
		if instant.After(cutoff) {
			kept = append(kept, instant)
		}
	}
	window.Timestamps = kept
	return len(window.Timestamps) < l.config.MaxPerWindow
}

func (l *rateLimiter) record(userID, articleID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.windowLocked(userID, articleID)
	window.Timestamps = append(window.Timestamps, now)
}

// remaining counts the comments the pair may still post at now without mutating the window.
func (l *rateLimiter) remaining(userID, articleID string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	window, ok := l.windows[engine.PairKey(userID, articleID)]
	if !ok {
		return l.config.MaxPerWindow
	}
	cutoff := now.Add(-l.config.Window)
	active := 0
	for _, instant := range window.Timestamps {
		if instant.After(cutoff) {
			active++
		}
	}
	if active >= l.config.MaxPerWindow {
		return 0
	}
	return l.config.MaxPerWindow - active
}

func (l *rateLimiter) snapshot(userID, articleID string) RateWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	window, ok := l.windows[engine.PairKey(userID, articleID)]
	if !ok {
		return RateWindow{UserID: userID, ArticleID: articleID}
	}
	return RateWindow{
		UserID:     window.UserID,
		ArticleID:  window.ArticleID,
		Timestamps: append([]time.Time(nil), window.Timestamps...),
	}
}

func (l *rateLimiter) windowLocked(userID, articleID string) *RateWindow {
	key := engine.PairKey(userID, articleID)
	window, ok := l.windows[key]
	if !ok {
		window = &RateWindow{UserID: userID, ArticleID: articleID}
		l.windows[key] = window
	}
	return window
}
