package viewer

import (
	"context"
	"log/slog"
	"sync"
)

// Runner drives a Session on a single goroutine. Actions are applied one at
// a time in arrival order; effects run concurrently and their completions
// are queued back as actions.
type Runner struct {
	gw     Gateway
	open   Opener
	logger *slog.Logger

	actions chan Action
	done    chan struct{}

	mu    sync.RWMutex
	state Session

	listenerMu sync.Mutex
	listeners  []chan Session

	effects sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithOpener replaces the function used to open staged files.
func WithOpener(open Opener) RunnerOption {
	return func(r *Runner) { r.open = open }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner starting from initial.
func NewRunner(gw Gateway, initial Session, opts ...RunnerOption) *Runner {
	r := &Runner{
		gw:      gw,
		open:    OpenFile,
		logger:  slog.Default(),
		actions: make(chan Action, 64),
		done:    make(chan struct{}),
		state:   initial,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch queues an action. It returns false once the runner has stopped.
func (r *Runner) Dispatch(a Action) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.actions <- a:
		return true
	case <-r.done:
		return false
	}
}

// Snapshot returns the current session.
func (r *Runner) Snapshot() Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Subscribe returns a channel that receives the session after every
// action. Slow subscribers miss updates rather than stall the runner.
// The channel is closed when the runner stops.
func (r *Runner) Subscribe() <-chan Session {
	ch := make(chan Session, 16)

	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()

	select {
	case <-r.done:
		close(ch)
		return ch
	default:
	}

	r.listeners = append(r.listeners, ch)
	ch <- r.Snapshot()
	return ch
}

// Run processes actions until ctx is cancelled. In-flight effects are
// cancelled through ctx and waited for before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-r.actions:
			r.apply(ctx, a)
		}
	}
}

func (r *Runner) apply(ctx context.Context, a Action) {
	r.mu.Lock()
	next, effects := Reduce(r.state, a)
	r.state = next
	r.mu.Unlock()

	r.logger.Debug("viewer action",
		"action", actionName(a),
		"phase", next.Phase.String(),
		"generation", next.Generation,
		"rows", len(next.Rows),
		"cursor", next.Cursor,
		"total", next.TotalCount,
	)

	r.notify(next)

	for _, e := range effects {
		r.effects.Add(1)
		go func(e Effect) {
			defer r.effects.Done()
			if done := Execute(ctx, r.gw, r.open, e); done != nil {
				r.Dispatch(done)
			}
		}(e)
	}
}

func (r *Runner) notify(s Session) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()

	for _, ch := range r.listeners {
		select {
		case ch <- s:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (r *Runner) stop() {
	r.listenerMu.Lock()
	close(r.done)
	for _, ch := range r.listeners {
		close(ch)
	}
	r.listeners = nil
	r.listenerMu.Unlock()

	r.effects.Wait()
}

func actionName(a Action) string {
	switch a.(type) {
	case SelectFile:
		return "select_file"
	case RemoveFile:
		return "remove_file"
	case Upload:
		return "upload"
	case LoadMore:
		return "load_more"
	case OverrideType:
		return "override_type"
	case Mount:
		return "mount"
	case UploadSucceeded:
		return "upload_succeeded"
	case UploadFailed:
		return "upload_failed"
	case PageLoaded:
		return "page_loaded"
	case PageFailed:
		return "page_failed"
	case OverridePersisted:
		return "override_persisted"
	case OverrideFailed:
		return "override_failed"
	default:
		return "unknown"
	}
}
