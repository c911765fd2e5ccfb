package repositories

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

const (
	welcomeKeyPrefix = "group:welcome:"
	membersKeyPrefix = "group:members:"
)

// WelcomeRepository stores each group's welcome config and its member
// records, one JSON document per group and kind.
type WelcomeRepository struct {
	store storage.Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewWelcomeRepository(store storage.Store) *WelcomeRepository {
	return &WelcomeRepository{store: store, now: time.Now}
}

// GetConfig returns the group's config, or the default one when none was saved.
func (r *WelcomeRepository) GetConfig(ctx context.Context, groupID string) (*models.WelcomeConfig, error) {
	data, err := r.store.Get(ctx, welcomeKeyPrefix+groupID)
	if storage.IsNotFound(err) {
		return models.DefaultWelcomeConfig(groupID), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to read welcome config")
	}

	var cfg models.WelcomeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "corrupt welcome config")
	}
	cfg.GroupID = groupID
	return &cfg, nil
}

func (r *WelcomeRepository) SaveConfig(ctx context.Context, cfg *models.WelcomeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = r.now()
	return r.put(ctx, welcomeKeyPrefix+cfg.GroupID, cfg, "welcome config")
}

// SetEnabled switches the group's welcome messages on or off and returns
// the updated config.
func (r *WelcomeRepository) SetEnabled(ctx context.Context, groupID string, enabled bool) (*models.WelcomeConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.GetConfig(ctx, groupID)
	if err != nil {
		return nil, err
	}
	cfg.Enabled = enabled
	if err := r.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MemberJoined records a join and reports whether the member still has to
// be greeted. A rejoin keeps the earlier greeting.
func (r *WelcomeRepository) MemberJoined(ctx context.Context, groupID, participantID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, err := r.loadMembers(ctx, groupID)
	if err != nil {
		return false, err
	}
	m, ok := members[participantID]
	if !ok {
		m = &models.GroupMember{ParticipantID: participantID}
		members[participantID] = m
	}
	m.JoinedAt = r.now()
	m.LeftAt = nil
	if name != "" {
		m.Name = name
	}
	if err := r.put(ctx, membersKeyPrefix+groupID, members, "group members"); err != nil {
		return false, err
	}
	return !m.Welcomed, nil
}

func (r *WelcomeRepository) MarkWelcomed(ctx context.Context, groupID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, err := r.loadMembers(ctx, groupID)
	if err != nil {
		return err
	}
	m, ok := members[participantID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "member not found")
	}
	m.Welcomed = true
	return r.put(ctx, membersKeyPrefix+groupID, members, "group members")
}

// MemberLeft marks the member as gone and returns its record, or nil when
// the member was never seen.
func (r *WelcomeRepository) MemberLeft(ctx context.Context, groupID, participantID string) (*models.GroupMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, err := r.loadMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	m, ok := members[participantID]
	if !ok {
		return nil, nil
	}
	left := r.now()
	m.LeftAt = &left
	if err := r.put(ctx, membersKeyPrefix+groupID, members, "group members"); err != nil {
		return nil, err
	}
	return m, nil
}

// Members lists the group's member records, earliest join first.
func (r *WelcomeRepository) Members(ctx context.Context, groupID string) ([]*models.GroupMember, error) {
	members, err := r.loadMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	list := make([]*models.GroupMember, 0, len(members))
	for _, m := range members {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].ParticipantID < list[j].ParticipantID
	})
	return list, nil
}

func (r *WelcomeRepository) loadMembers(ctx context.Context, groupID string) (map[string]*models.GroupMember, error) {
	data, err := r.store.Get(ctx, membersKeyPrefix+groupID)
	if storage.IsNotFound(err) {
		return make(map[string]*models.GroupMember), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to read group members")
	}

	members := make(map[string]*models.GroupMember)
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "corrupt group members")
	}
	return members, nil
}

func (r *WelcomeRepository) put(ctx context.Context, key string, v interface{}, what string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode "+what)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to write "+what)
	}
	return nil
}
