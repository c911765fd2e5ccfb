package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/internal/middleware"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

const (
	groupQueueSize     = 100
	defaultIdleTimeout = 5 * time.Minute
)

type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.GroupEvent)
}

// GroupGate decides whether the bot answers in a group.
type GroupGate interface {
	IsAllowed(ctx context.Context, groupID string) (bool, error)
}

// groupWorker is the single goroutine handling one group's events.
// pending counts events queued or in progress and is guarded by the
// dispatcher mutex.
type groupWorker struct {
	events  chan models.GroupEvent
	pending int
}

// Dispatcher runs one worker goroutine per group id. Events of a group are
// handled in order by its worker, so a slow group never holds up another.
// Workers are started on the first event and exit after idleTimeout
// without events.
type Dispatcher struct {
	handler     EventHandler
	gate        GroupGate
	limiter     *middleware.RateLimiter
	idleTimeout time.Duration

	mu       sync.Mutex
	groups   map[string]*groupWorker
	closed   bool
	stopping chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDispatcher builds a dispatcher. gate and limiter may be nil; a
// non-positive idleTimeout uses five minutes.
func NewDispatcher(handler EventHandler, gate GroupGate, limiter *middleware.RateLimiter, idleTimeout time.Duration) *Dispatcher {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:     handler,
		gate:        gate,
		limiter:     limiter,
		idleTimeout: idleTimeout,
		groups:      make(map[string]*groupWorker),
		stopping:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Dispatch queues ev for its group's worker. It returns false when the
// event was dropped by the whitelist, the rate limiter or shutdown.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.GroupEvent) bool {
	if d.gate != nil {
		allowed, err := d.gate.IsAllowed(ctx, ev.GroupID)
		if err != nil {
			logger.Warn("Whitelist check failed, dropping event", "group_id", ev.GroupID, "error", err)
			return false
		}
		if !allowed {
			logger.Debug("Group not whitelisted", "group_id", ev.GroupID)
			return false
		}
	}
	if ev.Kind == models.EventMessage && d.limiter != nil && !d.limiter.CheckParticipantLimit(ev.ParticipantID) {
		logger.Warn("Participant rate limited", "group_id", ev.GroupID, "participant_id", ev.ParticipantID)
		return false
	}
	return d.Enqueue(ev)
}

// Enqueue queues ev without the whitelist and rate checks. Used for
// operator events. A full queue blocks only callers for the same group.
func (d *Dispatcher) Enqueue(ev models.GroupEvent) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	w, ok := d.groups[ev.GroupID]
	if !ok {
		w = &groupWorker{events: make(chan models.GroupEvent, groupQueueSize)}
		d.groups[ev.GroupID] = w
		d.wg.Add(1)
		go d.runWorker(ev.GroupID, w)
	}
	w.pending++
	d.mu.Unlock()

	metrics.InboundEvent(string(ev.Kind))
	w.events <- ev
	return true
}

// ActiveGroups returns how many groups currently have a worker.
func (d *Dispatcher) ActiveGroups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.groups)
}

func (d *Dispatcher) runWorker(groupID string, w *groupWorker) {
	defer d.wg.Done()
	metrics.GroupWorkerStarted()
	defer metrics.GroupWorkerStopped()

	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev := <-w.events:
			d.handle(groupID, w, ev)
			idle.Reset(d.idleTimeout)
		case <-idle.C:
			if d.retire(groupID, w) {
				return
			}
			idle.Reset(d.idleTimeout)
		case <-d.stopping:
			d.drain(groupID, w)
			return
		}
	}
}

// retire removes w from the group map when nothing is queued for it. A
// later event for the group starts a fresh worker.
func (d *Dispatcher) retire(groupID string, w *groupWorker) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w.pending > 0 {
		return false
	}
	delete(d.groups, groupID)
	logger.Debug("Group worker idle, stopping", "group_id", groupID)
	return true
}

// drain handles the events accepted before Stop.
func (d *Dispatcher) drain(groupID string, w *groupWorker) {
	for {
		d.mu.Lock()
		if w.pending == 0 {
			delete(d.groups, groupID)
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		d.handle(groupID, w, <-w.events)
	}
}

func (d *Dispatcher) handle(groupID string, w *groupWorker, ev models.GroupEvent) {
	defer func() {
		d.mu.Lock()
		w.pending--
		d.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleEvent", "group_id", groupID, "kind", ev.Kind, "error", r)
		}
	}()
	d.handler.HandleEvent(d.ctx, ev)
}

// Stop stops accepting events, lets every group finish its queue and
// waits for the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.stopping)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}
