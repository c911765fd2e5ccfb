package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/middleware"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderRecorder struct {
	mu     sync.Mutex
	events map[string][]string
	panics bool
}

func (r *orderRecorder) HandleEvent(_ context.Context, ev models.GroupEvent) {
	if r.panics && ev.Text == "boom" {
		panic("handler exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]string)
	}
	r.events[ev.GroupID] = append(r.events[ev.GroupID], ev.Text)
}

func (r *orderRecorder) texts(groupID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events[groupID]...)
}

type staticGate struct {
	allowed map[string]bool
	err     error
}

func (g staticGate) IsAllowed(_ context.Context, groupID string) (bool, error) {
	return g.allowed[groupID], g.err
}

func message(groupID, pid, text string) models.GroupEvent {
	return models.GroupEvent{Kind: models.EventMessage, GroupID: groupID, ParticipantID: pid, Text: text}
}

func TestDispatcher_PreservesPerGroupOrder(t *testing.T) {
	rec := &orderRecorder{}
	d := NewDispatcher(rec, nil, nil, time.Minute)

	groups := []string{"g1@g.us", "g2@g.us", "g3@g.us"}
	for i := 0; i < 50; i++ {
		for _, g := range groups {
			require.True(t, d.Dispatch(context.Background(), message(g, "p", fmt.Sprint(i))))
		}
	}
	d.Stop()

	for _, g := range groups {
		got := rec.texts(g)
		require.Len(t, got, 50)
		for i, text := range got {
			assert.Equal(t, fmt.Sprint(i), text, "group %s", g)
		}
	}
}

func TestDispatcher_Gate(t *testing.T) {
	rec := &orderRecorder{}
	d := NewDispatcher(rec, staticGate{allowed: map[string]bool{"ok@g.us": true}}, nil, time.Minute)

	assert.True(t, d.Dispatch(context.Background(), message("ok@g.us", "p", "hi")))
	assert.False(t, d.Dispatch(context.Background(), message("other@g.us", "p", "hi")))
	d.Stop()

	assert.Equal(t, []string{"hi"}, rec.texts("ok@g.us"))
	assert.Empty(t, rec.texts("other@g.us"))
}

func TestDispatcher_GateErrorFailsClosed(t *testing.T) {
	rec := &orderRecorder{}
	gate := staticGate{allowed: map[string]bool{"ok@g.us": true}, err: fmt.Errorf("redis down")}
	d := NewDispatcher(rec, gate, nil, time.Minute)
	defer d.Stop()

	assert.False(t, d.Dispatch(context.Background(), message("ok@g.us", "p", "hi")))
}

func TestDispatcher_RateLimitsMessagesOnly(t *testing.T) {
	rec := &orderRecorder{}
	limiter := middleware.NewRateLimiter(2, 0, time.Minute)
	defer limiter.Stop()
	d := NewDispatcher(rec, nil, limiter, time.Minute)

	ctx := context.Background()
	assert.True(t, d.Dispatch(ctx, message("g@g.us", "spammer", "1")))
	assert.True(t, d.Dispatch(ctx, message("g@g.us", "spammer", "2")))
	assert.False(t, d.Dispatch(ctx, message("g@g.us", "spammer", "3")))
	assert.True(t, d.Dispatch(ctx, models.GroupEvent{Kind: models.EventLeft, GroupID: "g@g.us", ParticipantID: "spammer"}))
	assert.True(t, d.Dispatch(ctx, message("g@g.us", "other", "4")))
	d.Stop()

	assert.Equal(t, []string{"1", "2", "", "4"}, rec.texts("g@g.us"))
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	rec := &orderRecorder{panics: true}
	d := NewDispatcher(rec, nil, nil, time.Minute)

	d.Dispatch(context.Background(), message("g@g.us", "p", "boom"))
	d.Dispatch(context.Background(), message("g@g.us", "p", "after"))
	d.Stop()

	assert.Equal(t, []string{"after"}, rec.texts("g@g.us"))
}

func TestDispatcher_StopRejectsEvents(t *testing.T) {
	d := NewDispatcher(&orderRecorder{}, nil, nil, time.Minute)
	d.Stop()
	d.Stop()

	assert.False(t, d.Dispatch(context.Background(), message("g@g.us", "p", "late")))
}

type blockingHandler struct {
	blockGroup string
	release    chan struct{}
	handled    chan string
}

func (h *blockingHandler) HandleEvent(_ context.Context, ev models.GroupEvent) {
	if ev.GroupID == h.blockGroup {
		<-h.release
	}
	h.handled <- ev.GroupID
}

func TestDispatcher_SlowGroupDoesNotDelayOthers(t *testing.T) {
	h := &blockingHandler{
		blockGroup: "120363000000000001@g.us",
		release:    make(chan struct{}),
		handled:    make(chan string, 10),
	}
	d := NewDispatcher(h, nil, nil, time.Minute)

	ctx := context.Background()
	require.True(t, d.Dispatch(ctx, message("120363000000000001@g.us", "a", "A")))
	for i := 2; i <= 9; i++ {
		require.True(t, d.Dispatch(ctx, message(fmt.Sprintf("12036300000000000%d@g.us", i), "b", "B")))
	}

	for i := 0; i < 8; i++ {
		select {
		case g := <-h.handled:
			assert.NotEqual(t, h.blockGroup, g)
		case <-time.After(time.Second):
			t.Fatalf("only %d other groups handled while one group was blocked", i)
		}
	}
	assert.Equal(t, 9, d.ActiveGroups())

	close(h.release)
	assert.Equal(t, h.blockGroup, <-h.handled)
	d.Stop()
}

func TestDispatcher_IdleWorkersAreRetired(t *testing.T) {
	rec := &orderRecorder{}
	d := NewDispatcher(rec, nil, nil, 20*time.Millisecond)
	defer d.Stop()

	require.True(t, d.Dispatch(context.Background(), message("g@g.us", "p", "1")))
	assert.Eventually(t, func() bool { return d.ActiveGroups() == 0 }, time.Second, 5*time.Millisecond)

	require.True(t, d.Dispatch(context.Background(), message("g@g.us", "p", "2")))
	assert.Eventually(t, func() bool { return len(rec.texts("g@g.us")) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2"}, rec.texts("g@g.us"))
}

func TestDispatcher_StopDrainsQueuedEvents(t *testing.T) {
	h := &blockingHandler{
		blockGroup: "g@g.us",
		release:    make(chan struct{}),
		handled:    make(chan string, 10),
	}
	d := NewDispatcher(h, nil, nil, time.Minute)
	for i := 0; i < 3; i++ {
		require.True(t, d.Dispatch(context.Background(), message("g@g.us", "p", fmt.Sprint(i))))
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	close(h.release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Len(t, h.handled, 3)
	assert.Equal(t, 0, d.ActiveGroups())
}
