package repositories

import (
	"context"
	"encoding/json"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

const gameStateKeyPrefix = "quiz:state:"

// GameStateRepository is the durable backup of generated games. The
// pipeline's memory cache stays authoritative.
type GameStateRepository struct {
	store storage.Store
}

func NewGameStateRepository(store storage.Store) *GameStateRepository {
	return &GameStateRepository{store: store}
}

func (r *GameStateRepository) SaveGame(ctx context.Context, snap *models.GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode game state")
	}
	if err := r.store.Set(ctx, gameStateKeyPrefix+snap.GameID, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to save game state")
	}
	return nil
}

func (r *GameStateRepository) LoadGame(ctx context.Context, gameID string) (*models.GameSnapshot, error) {
	data, err := r.store.Get(ctx, gameStateKeyPrefix+gameID)
	if err != nil {
		return nil, err
	}
	var snap models.GameSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "corrupt game state")
	}
	return &snap, nil
}
