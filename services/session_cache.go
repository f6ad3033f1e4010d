package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultSessionTTL = 2 * time.Hour

type cachedSession struct {
	context   *InterviewContext
	expiresAt time.Time
}

// SessionCache keeps the live context of each active interview in process
// memory. Entries expire after ttl without access. A miss is never an error:
// the caller rebuilds the context from the database.
type SessionCache struct {
	ttl      time.Duration
	sessions map[uint]*cachedSession
	mu       sync.RWMutex
	now      func() time.Time
}

func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{
		ttl:      ttl,
		sessions: make(map[uint]*cachedSession),
		now:      time.Now,
	}
}

// Register stores a copy of the context and resets its expiry
func (c *SessionCache) Register(ictx *InterviewContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[ictx.InterviewID] = &cachedSession{
		context:   ictx.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}
	sessionCacheEntries.Set(float64(len(c.sessions)))
	slog.Debug("Session cached", "interview_id", ictx.InterviewID)
}

// Update is Register under the name used after a mutation
func (c *SessionCache) Update(ictx *InterviewContext) {
	c.Register(ictx)
}

// Get returns a copy of the live context and refreshes its expiry
func (c *SessionCache) Get(interviewID uint) (*InterviewContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[interviewID]
	if !ok {
		return nil, false
	}
	now := c.now()
	if !now.Before(session.expiresAt) {
		delete(c.sessions, interviewID)
		sessionCacheEntries.Set(float64(len(c.sessions)))
		slog.Info("Session cache entry expired", "interview_id", interviewID)
		return nil, false
	}
	session.expiresAt = now.Add(c.ttl)
	return session.context.Clone(), true
}

// Complete evicts the entry. Evicting a missing entry is a no-op.
func (c *SessionCache) Complete(interviewID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[interviewID]; ok {
		delete(c.sessions, interviewID)
		sessionCacheEntries.Set(float64(len(c.sessions)))
		slog.Info("Session cache entry evicted", "interview_id", interviewID)
	}
}

// Len reports the number of live entries
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// StartCleanup evicts expired entries every interval until ctx is done
func (c *SessionCache) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.evictExpired()
			}
		}
	}()
}

func (c *SessionCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, session := range c.sessions {
		if !now.Before(session.expiresAt) {
			delete(c.sessions, id)
			slog.Info("Cleaned up stale session cache", "interview_id", id)
		}
	}
	sessionCacheEntries.Set(float64(len(c.sessions)))
}
