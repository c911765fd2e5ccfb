package repositories

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

const whitelistKey = "group:whitelist"

// WhitelistRepository stores the set of groups the bot answers in as a
// JSON list under a single key.
type WhitelistRepository struct {
	store storage.Store
	mu    sync.Mutex
}

func NewWhitelistRepository(store storage.Store) *WhitelistRepository {
	return &WhitelistRepository{store: store}
}

// List returns the whitelisted group ids in sorted order.
func (r *WhitelistRepository) List(ctx context.Context) ([]string, error) {
	data, err := r.store.Get(ctx, whitelistKey)
	if storage.IsNotFound(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to read whitelist")
	}

	var groups []string
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "corrupt whitelist")
	}
	sort.Strings(groups)
	return groups, nil
}

func (r *WhitelistRepository) IsAllowed(ctx context.Context, groupID string) (bool, error) {
	groups, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(groups, groupID)
	return i < len(groups) && groups[i] == groupID, nil
}

// Add whitelists groupID. Returns false when it was already present.
func (r *WhitelistRepository) Add(ctx context.Context, groupID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	groups, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g == groupID {
			return false, nil
		}
	}
	return true, r.write(ctx, append(groups, groupID))
}

// Remove drops groupID. Returns false when it was not whitelisted.
func (r *WhitelistRepository) Remove(ctx context.Context, groupID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	groups, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	kept := groups[:0]
	for _, g := range groups {
		if g != groupID {
			kept = append(kept, g)
		}
	}
	if len(kept) == len(groups) {
		return false, nil
	}
	return true, r.write(ctx, kept)
}

func (r *WhitelistRepository) write(ctx context.Context, groups []string) error {
	sort.Strings(groups)
	data, err := json.Marshal(groups)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode whitelist")
	}
	if err := r.store.Set(ctx, whitelistKey, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to write whitelist")
	}
	return nil
}
