package repositories

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

const sessionKeyPrefix = "group:session:"

// SessionRepository keeps group sessions in memory and mirrors them to the
// Store. Store failures are logged and swallowed; the memory copy wins.
type SessionRepository struct {
	store   storage.Store
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string]*models.GroupSession
}

func NewSessionRepository(store storage.Store) *SessionRepository {
	return &SessionRepository{
		store:   store,
		timeout: 3 * time.Second,
		cache:   make(map[string]*models.GroupSession),
	}
}

func sessionKey(groupID string) string {
	return sessionKeyPrefix + groupID
}

// Get returns a copy of the group's session: cached, loaded from the Store,
// or a fresh IDLE session.
func (r *SessionRepository) Get(ctx context.Context, groupID string) *models.GroupSession {
	r.mu.RLock()
	cached, ok := r.cache[groupID]
	r.mu.RUnlock()
	if ok {
		return cached.Clone()
	}

	if s := r.load(ctx, groupID); s != nil {
		r.mu.Lock()
		r.cache[groupID] = s.Clone()
		r.mu.Unlock()
		return s
	}
	return models.NewGroupSession(groupID)
}

func (r *SessionRepository) load(ctx context.Context, groupID string) *models.GroupSession {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.store.Get(ctx, sessionKey(groupID))
	if err != nil {
		if !storage.IsNotFound(err) {
			logger.Warn("Failed to load session", "group_id", groupID, "error", err)
			metrics.StoreError("session_get")
		}
		return nil
	}

	var s models.GroupSession
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Warn("Discarding corrupt session", "group_id", groupID, "error", err)
		return nil
	}
	if s.Participants == nil {
		s.Participants = make(map[string]*models.ParticipantScore)
	}
	return &s
}

// Save caches a copy of s and writes it through to the Store.
func (r *SessionRepository) Save(ctx context.Context, s *models.GroupSession) {
	s.UpdatedAt = time.Now()

	r.mu.Lock()
	r.cache[s.GroupID] = s.Clone()
	r.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		logger.Error("Failed to encode session", "group_id", s.GroupID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.Set(ctx, sessionKey(s.GroupID), data); err != nil {
		logger.Warn("Failed to persist session", "group_id", s.GroupID, "error", err)
		metrics.StoreError("session_set")
	}
}

// Reset returns the group to IDLE and persists it.
func (r *SessionRepository) Reset(ctx context.Context, groupID string) *models.GroupSession {
	s := r.Get(ctx, groupID)
	s.Reset()
	r.Save(ctx, s)
	logger.Info("Session reset", "group_id", groupID)
	return s
}

// Delete forgets the session in memory and in the Store.
func (r *SessionRepository) Delete(ctx context.Context, groupID string) {
	r.mu.Lock()
	delete(r.cache, groupID)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.Delete(ctx, sessionKey(groupID)); err != nil {
		logger.Warn("Failed to delete session", "group_id", groupID, "error", err)
		metrics.StoreError("session_delete")
	}
}

// ActiveSessions lists every session that is not IDLE, from memory and the Store.
func (r *SessionRepository) ActiveSessions(ctx context.Context) []*models.GroupSession {
	ids := make(map[string]struct{})

	r.mu.RLock()
	for id := range r.cache {
		ids[id] = struct{}{}
	}
	r.mu.RUnlock()

	listCtx, cancel := context.WithTimeout(ctx, r.timeout)
	keys, err := r.store.Keys(listCtx, sessionKeyPrefix)
	cancel()
	if err != nil {
		logger.Warn("Failed to list sessions", "error", err)
		metrics.StoreError("session_keys")
	}
	for _, k := range keys {
		ids[strings.TrimPrefix(k, sessionKeyPrefix)] = struct{}{}
	}

	active := make([]*models.GroupSession, 0, len(ids))
	for id := range ids {
		if s := r.Get(ctx, id); s.State != models.GroupStateIdle {
			active = append(active, s)
		}
	}
	return active
}
