package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisStore(t *testing.T) (*storage.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewRedisStore(client, time.Hour), mr
}

func TestSessionRepository_NewSessionIsIdle(t *testing.T) {
	repo := NewSessionRepository(storage.NewMemoryStore())

	s := repo.Get(context.Background(), "g1@g.us")
	assert.Equal(t, models.GroupStateIdle, s.State)
	assert.Equal(t, "g1@g.us", s.GroupID)
}

func TestSessionRepository_ReturnsCopies(t *testing.T) {
	repo := NewSessionRepository(storage.NewMemoryStore())
	ctx := context.Background()

	s := repo.Get(ctx, "g1@g.us")
	s.OpenLobby("a")
	s.AddParticipant("a", "Ana")
	repo.Save(ctx, s)

	s.AddParticipant("b", "Bia")
	got := repo.Get(ctx, "g1@g.us")
	assert.Len(t, got.Participants, 1, "unsaved mutation must not leak into the cache")
	assert.Equal(t, models.GroupStateWaitingStart, got.State)
}

func TestSessionRepository_SurvivesRestart(t *testing.T) {
	store, _ := redisStore(t)
	ctx := context.Background()

	first := NewSessionRepository(store)
	s := first.Get(ctx, "g1@g.us")
	s.OpenLobby("a")
	s.AddParticipant("a", "Ana")
	s.BeginGame("abcd1234", 3, time.Now())
	first.Save(ctx, s)

	second := NewSessionRepository(store)
	got := second.Get(ctx, "g1@g.us")
	assert.Equal(t, models.GroupStateActive, got.State)
	assert.Equal(t, "abcd1234", got.GameID)
	assert.Equal(t, []string{"a"}, got.TurnOrder)
}

func TestSessionRepository_StoreDownKeepsMemory(t *testing.T) {
	store, mr := redisStore(t)
	ctx := context.Background()
	repo := NewSessionRepository(store)

	mr.Close()

	s := repo.Get(ctx, "g1@g.us")
	s.OpenLobby("a")
	repo.Save(ctx, s)

	assert.Equal(t, models.GroupStateWaitingStart, repo.Get(ctx, "g1@g.us").State)
}

func TestSessionRepository_ActiveSessionsAndReset(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	writer := NewSessionRepository(store)
	for _, id := range []string{"g1@g.us", "g2@g.us", "g3@g.us"} {
		s := writer.Get(ctx, id)
		if id != "g3@g.us" {
			s.OpenLobby("a")
		}
		writer.Save(ctx, s)
	}

	reader := NewSessionRepository(store)
	assert.Len(t, reader.ActiveSessions(ctx), 2)

	reader.Reset(ctx, "g1@g.us")
	active := reader.ActiveSessions(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, "g2@g.us", active[0].GroupID)

	reader.Delete(ctx, "g2@g.us")
	assert.Empty(t, reader.ActiveSessions(ctx))
}

func TestWhitelistRepository(t *testing.T) {
	store, _ := redisStore(t)
	repo := NewWhitelistRepository(store)
	ctx := context.Background()

	allowed, err := repo.IsAllowed(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.False(t, allowed)

	added, err := repo.Add(ctx, "g2@g.us")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.Add(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.Add(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.False(t, added)

	groups, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1@g.us", "g2@g.us"}, groups)

	allowed, err = repo.IsAllowed(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.True(t, allowed)

	removed, err := repo.Remove(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Remove(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.False(t, removed)

	groups, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2@g.us"}, groups)
}

func TestWhitelistRepository_StoreDown(t *testing.T) {
	store, mr := redisStore(t)
	repo := NewWhitelistRepository(store)
	mr.Close()

	_, err := repo.IsAllowed(context.Background(), "g1@g.us")
	assert.Error(t, err)
}

func TestWelcomeRepository_Config(t *testing.T) {
	store, _ := redisStore(t)
	repo := NewWelcomeRepository(store)
	ctx := context.Background()

	cfg, err := repo.GetConfig(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "g1@g.us", cfg.GroupID)

	cfg.GroupName = "Renda Extra"
	cfg.WelcomeMessage = "Oi {name}, bem-vindo ao {group}"
	require.NoError(t, repo.SaveConfig(ctx, cfg))

	cfg, err = repo.SetEnabled(ctx, "g1@g.us", false)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	reloaded, err := NewWelcomeRepository(store).GetConfig(ctx, "g1@g.us")
	require.NoError(t, err)
	assert.False(t, reloaded.Enabled)
	assert.Equal(t, "Oi Ana, bem-vindo ao Renda Extra", reloaded.Welcome("Ana", "5511"))

	reloaded.InviteLink = "ftp://example.com"
	err = repo.SaveConfig(ctx, reloaded)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestWelcomeRepository_GreetsMemberOnce(t *testing.T) {
	repo := NewWelcomeRepository(storage.NewMemoryStore())
	ctx := context.Background()

	first, err := repo.MemberJoined(ctx, "g1@g.us", "5511", "Ana")
	require.NoError(t, err)
	assert.True(t, first)

	// Not greeted yet, so a second join still asks for a greeting.
	again, err := repo.MemberJoined(ctx, "g1@g.us", "5511", "")
	require.NoError(t, err)
	assert.True(t, again)

	require.NoError(t, repo.MarkWelcomed(ctx, "g1@g.us", "5511"))
	m, err := repo.MemberLeft(ctx, "g1@g.us", "5511")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Ana", m.Name)
	assert.False(t, m.Active())

	rejoin, err := repo.MemberJoined(ctx, "g1@g.us", "5511", "Ana S.")
	require.NoError(t, err)
	assert.False(t, rejoin)

	unknown, err := repo.MemberLeft(ctx, "g1@g.us", "5599")
	require.NoError(t, err)
	assert.Nil(t, unknown)
	assert.True(t, errors.HasCode(repo.MarkWelcomed(ctx, "g1@g.us", "5599"), errors.ErrCodeNotFound))

	members, err := repo.Members(ctx, "g1@g.us")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Ana S.", members[0].Name)
	assert.True(t, members[0].Active())
	assert.True(t, members[0].Welcomed)

	other, err := repo.Members(ctx, "g2@g.us")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestWelcomeRepository_StoreDown(t *testing.T) {
	store, mr := redisStore(t)
	repo := NewWelcomeRepository(store)
	mr.Close()

	_, err := repo.GetConfig(context.Background(), "g1@g.us")
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
	_, err = repo.MemberJoined(context.Background(), "g1@g.us", "5511", "Ana")
	assert.Error(t, err)
}

func TestGameStateRepository_RoundTrip(t *testing.T) {
	repo := NewGameStateRepository(storage.NewMemoryStore())
	ctx := context.Background()

	state := models.NewGameState("abcd1234", 3)
	state.AddQuestion(&models.Question{Ordinal: 1, Text: "q1", Difficulty: models.DifficultyEasy, Points: 1})
	state.AddTopic("prazo")
	require.NoError(t, repo.SaveGame(ctx, state.Snapshot()))

	snap, err := repo.LoadGame(ctx, "abcd1234")
	require.NoError(t, err)
	restored := models.GameStateFromSnapshot(snap)
	q, ok := restored.Question(1)
	require.True(t, ok)
	assert.Equal(t, "q1", q.Text)
	assert.Equal(t, []string{"prazo"}, restored.Topics())

	_, err = repo.LoadGame(ctx, "missing1")
	assert.True(t, storage.IsNotFound(err))
}

func TestAuditData(t *testing.T) {
	assert.Nil(t, AuditData(nil))
	assert.JSONEq(t, `{"ordinal":2}`, string(AuditData(map[string]int{"ordinal": 2})))
}

func TestLogAuditLogger_DoesNotPanic(t *testing.T) {
	var audit AuditLogger = LogAuditLogger{}
	audit.Record(context.Background(), &models.QuizLogEntry{
		Level: models.LogLevelError, Category: models.LogCategoryQuiz, Event: "error",
		Message: "failed", GroupID: "g1@g.us", GameID: "abcd1234", Error: "boom",
	})
}
