package task

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/small-frappuccino/activityboard/pkg/log"
)

// Handler processes a task payload.
type Handler func(ctx context.Context, payload any) error

// Options configures how a task is dispatched and executed.
type Options struct {
	// GroupKey serializes execution for tasks sharing the same group. Use it
	// to guarantee order per guild; empty means the global group.
	GroupKey string

	// IdempotencyKey deduplicates tasks enqueued within IdempotencyTTL. A
	// task whose key is still in flight or recently enqueued is rejected
	// with ErrDuplicateTask.
	IdempotencyKey string

	// MaxAttempts caps handler retries; 0 uses Config.DefaultMaxAttempts.
	MaxAttempts int

	// InitialBackoff seeds the retry backoff; 0 uses Config.InitialBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff; 0 uses Config.MaxBackoff.
	MaxBackoff time.Duration

	// IdempotencyTTL controls how long the idempotency key dedupes; 0 uses
	// Config.IdempotencyTTL.
	IdempotencyTTL time.Duration
}

// Task is a unit of work routed to a registered handler.
type Task struct {
	Type    string
	Payload any
	Options Options
}

// Config tunes Router behavior.
type Config struct {
	DefaultMaxAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	IdempotencyTTL     time.Duration
	GroupBuffer        int
	GroupIdleTTL       time.Duration
	CleanupInterval    time.Duration

	// MaxWorkers limits concurrent handler executions across all groups.
	// 0 or less means unlimited.
	MaxWorkers int
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		DefaultMaxAttempts: 3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		IdempotencyTTL:     60 * time.Second,
		GroupBuffer:        128,
		GroupIdleTTL:       2 * time.Minute,
		CleanupInterval:    30 * time.Second,
		MaxWorkers:         0,
	}
}

var (
	ErrRouterClosed    = errors.New("task router is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrDuplicateTask   = errors.New("duplicate task (idempotency key present)")
)

const globalGroup = "_global"

// Router is an in-memory dispatcher with per-group serialized execution,
// idempotency-keyed deduplication, and retry with exponential backoff.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	groups   map[string]*group
	inflight map[string]time.Time // idempotencyKey -> expiry
	closed   bool
	cfg      Config

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	randMu sync.Mutex

	// Global concurrency semaphore; nil when unlimited.
	sem chan struct{}
}

type group struct {
	key        string
	ch         chan *queued
	lastActive time.Time
	stopping   bool
}

type queued struct {
	task    Task
	attempt int
}

// NewRouter creates a Router. Zero-valued Config fields fall back to Defaults.
func NewRouter(cfg Config) *Router {
	def := Defaults()
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = def.DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.GroupBuffer <= 0 {
		cfg.GroupBuffer = def.GroupBuffer
	}
	if cfg.GroupIdleTTL <= 0 {
		cfg.GroupIdleTTL = def.GroupIdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	r := &Router{
		handlers: make(map[string]Handler),
		groups:   make(map[string]*group),
		inflight: make(map[string]time.Time),
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
	if cfg.MaxWorkers > 0 {
		r.sem = make(chan struct{}, cfg.MaxWorkers)
	}

	r.wg.Add(1)
	go r.cleanupLoop()
	return r
}

// RegisterHandler registers the handler for a task type.
func (r *Router) RegisterHandler(taskType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = handler
}

// Dispatch enqueues a task, respecting grouping and idempotency.
func (r *Router) Dispatch(ctx context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRouterClosed
	}
	if r.handlers[t.Type] == nil {
		return ErrUnknownTaskType
	}

	eff := r.effectiveOptions(t.Options)

	if eff.IdempotencyKey != "" {
		if expiry, exists := r.inflight[eff.IdempotencyKey]; exists && time.Now().Before(expiry) {
			return ErrDuplicateTask
		}
		r.inflight[eff.IdempotencyKey] = time.Now().Add(eff.IdempotencyTTL)
	}

	groupKey := eff.GroupKey
	if groupKey == "" {
		groupKey = globalGroup
	}
	g := r.ensureGroupLocked(groupKey)

	select {
	case g.ch <- &queued{task: t, attempt: 1}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the router and waits for background goroutines. Tasks not yet
// picked up may be dropped.
func (r *Router) Close() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		for _, g := range r.groups {
			if g != nil && !g.stopping {
				g.stopping = true
				close(g.ch)
			}
		}
		r.mu.Unlock()
		close(r.stopCh)
		r.wg.Wait()
	})
}

// Stats is a snapshot of router state for monitoring.
type Stats struct {
	Groups          int
	Inflight        int
	Closed          bool
	RegisteredTypes int
}

func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Groups:          len(r.groups),
		Inflight:        len(r.inflight),
		Closed:          r.closed,
		RegisteredTypes: len(r.handlers),
	}
}

func (r *Router) effectiveOptions(opt Options) Options {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = r.cfg.DefaultMaxAttempts
	}
	if opt.InitialBackoff <= 0 {
		opt.InitialBackoff = r.cfg.InitialBackoff
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = r.cfg.MaxBackoff
	}
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = r.cfg.IdempotencyTTL
	}
	return opt
}

func (r *Router) ensureGroupLocked(key string) *group {
	if g, ok := r.groups[key]; ok && g != nil {
		return g
	}
	g := &group{
		key:        key,
		ch:         make(chan *queued, r.cfg.GroupBuffer),
		lastActive: time.Now(),
	}
	r.groups[key] = g
	r.wg.Add(1)
	go r.groupLoop(g)
	return g
}

// groupLoop is the single worker for a group; one loop per group keeps
// execution serialized per key.
func (r *Router) groupLoop(g *group) {
	defer r.wg.Done()

	for q := range g.ch {
		g.lastActive = time.Now()

		r.mu.RLock()
		handler := r.handlers[q.task.Type]
		eff := r.effectiveOptions(q.task.Options)
		r.mu.RUnlock()

		if handler == nil {
			log.ApplicationLogger().Warn("Task dropped (handler not registered)",
				"type", q.task.Type, "group", g.key)
			continue
		}

		if r.sem != nil {
			r.sem <- struct{}{}
		}
		err := handler(context.Background(), q.task.Payload)
		if r.sem != nil {
			<-r.sem
		}

		if err == nil {
			continue
		}

		if q.attempt >= eff.MaxAttempts {
			log.ErrorLoggerRaw().Error("Task failed; max attempts reached",
				"type", q.task.Type, "group", g.key, "attempts", q.attempt, "err", err)
			continue
		}

		delay := r.backoff(eff.InitialBackoff, eff.MaxBackoff, q.attempt)
		log.ApplicationLogger().Warn("Task failed, scheduling retry",
			"type", q.task.Type, "group", g.key,
			"attempt", q.attempt+1, "max_attempts", eff.MaxAttempts,
			"backoff", delay.String(), "err", err)
		r.requeueAfter(g.key, q, delay)
	}
}

func (r *Router) requeueAfter(groupKey string, q *queued, delay time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-r.stopCh:
			return
		}

		q.attempt++
		r.mu.RLock()
		g := r.groups[groupKey]
		r.mu.RUnlock()
		if g == nil || g.stopping {
			return
		}
		select {
		case g.ch <- q:
		case <-r.stopCh:
		}
	}()
}

func (r *Router) backoff(initial, max time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > max {
			d = max
			break
		}
	}
	// 10% jitter to avoid synchronized retries
	r.randMu.Lock()
	delta := int64(float64(d) * 0.1)
	if delta > 0 {
		d += time.Duration(rand.Int63n(2*delta+1) - delta)
	}
	r.randMu.Unlock()

	if d < initial {
		d = initial
	}
	if d > max {
		d = max
	}
	return d
}

func (r *Router) cleanupLoop() {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.cleanupOnce()
		}
	}
}

func (r *Router) cleanupOnce() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, expiry := range r.inflight {
		if now.After(expiry) {
			delete(r.inflight, k)
		}
	}

	for key, g := range r.groups {
		if g == nil || g.stopping {
			continue
		}
		if now.Sub(g.lastActive) >= r.cfg.GroupIdleTTL && len(g.ch) == 0 {
			g.stopping = true
			close(g.ch)
			delete(r.groups, key)
		}
	}
}
