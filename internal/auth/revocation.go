package auth

import (
	"sync"
	"time"
)

// RevocationList remembers logged-out token ids until their expiry.
type RevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clock   func() time.Time
}

// NewRevocationList constructs an empty list.
func NewRevocationList(clock func() time.Time) *RevocationList {
	if clock == nil {
		clock = time.Now
	}
	return &RevocationList{
		entries: make(map[string]time.Time),
		clock:   clock,
	}
}

// Add revokes tokenID until expiresAt.
func (l *RevocationList) Add(tokenID string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.clock())
	l.entries[tokenID] = expiresAt
}

// Contains reports whether tokenID is revoked and not yet expired.
func (l *RevocationList) Contains(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.entries[tokenID]
	if !ok {
		return false
	}
	if !l.clock().Before(expiresAt) {
		delete(l.entries, tokenID)
		return false
	}
	return true
}

// Len reports the number of tracked entries, expired or not.
func (l *RevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *RevocationList) pruneLocked(now time.Time) {
	for tokenID, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, tokenID)
		}
	}
}
