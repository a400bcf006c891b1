package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hiroag/irhub-core/internal/queue"
	"github.com/hiroag/irhub-core/internal/registry"
	"github.com/hiroag/irhub-core/internal/state"
)

// Phase is one step of a pipeline run.
type Phase string

// Run phases, in execution order. Failed is terminal and reachable from
// any non-terminal phase.
const (
	PhasePending      Phase = "pending"
	PhaseResolving    Phase = "resolving"
	PhaseTranslating  Phase = "translating"
	PhaseDispatching  Phase = "dispatching"
	PhasePersisting   Phase = "persisting"
	PhaseAcknowledged Phase = "acknowledged"
	PhaseFailed       Phase = "failed"
)

// Resolver resolves an alias to its canonical records.
// Satisfied by *registry.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, aliasID string) (*registry.Resolution, error)
}

// CodeLookup reads a remote's IR code table.
// Satisfied by registry.Repository implementations.
type CodeLookup interface {
	GetCode(ctx context.Context, remoteID, command, valueKey string) (string, error)
}

// Dispatcher sends a waveform batch to one transceiver.
// Satisfied by *ir.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, macAddr string, waveforms []string) error
}

// Acknowledger clears a processed command event.
// Satisfied by *queue.Queue.
type Acknowledger interface {
	Acknowledge(aliasID string) error
}

// Metrics records execution outcomes and hardware dispatches.
// Satisfied by *influxdb.Client.
type Metrics interface {
	WriteExecutionMetric(aliasID, command, outcome string, duration time.Duration)
	WriteDispatchMetric(remoteID string, codes int, duration time.Duration)
}

// Notifier receives terminal run events, e.g. for websocket fan-out.
type Notifier interface {
	Notify(event Event)
}

// Event describes one finished pipeline run.
type Event struct {
	AliasID    string  `json:"alias_id"`
	Phase      Phase   `json:"phase"`
	Commands   int     `json:"commands"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// Logger interface for run logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config wires an Orchestrator's collaborators and limits.
type Config struct {
	Resolver   Resolver
	Codes      CodeLookup
	States     state.Store
	Dispatcher Dispatcher
	Queue      Acknowledger
	Logger     Logger

	// Metrics and Notifier are optional; nil disables them.
	Metrics  Metrics
	Notifier Notifier

	// Workers is the size of the run worker pool.
	Workers int

	// RunTimeout bounds one pipeline run end to end.
	RunTimeout time.Duration
}

// task is one queued command event awaiting a worker.
type task struct {
	aliasID  string
	commands []queue.Command
}

// taskQueueSize buffers bursts of change-feed deliveries ahead of the
// worker pool.
const taskQueueSize = 64

// Orchestrator drives command events through resolve, translate, dispatch
// and persist, acknowledging each event exactly once.
//
// Thread Safety:
//   - Handle may be called from any goroutine (it is the queue's change
//     feed callback).
//   - Runs for different aliases proceed concurrently; runs for the same
//     alias are serialized by a per-alias lock.
type Orchestrator struct {
	cfg   Config
	tasks chan task
	wg    sync.WaitGroup
	locks keyedMutex

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an orchestrator. Call Start to launch the worker pool.
func New(cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		cfg:   cfg,
		tasks: make(chan task, taskQueueSize),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		for i := 0; i < o.cfg.Workers; i++ {
			o.wg.Add(1)
			go o.worker(ctx)
		}
	})
}

// Stop closes the task queue and waits for in-flight runs to finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.tasks)
	})
	o.wg.Wait()
}

// Handle enqueues one command event for execution. It is the change-feed
// callback registered with queue.Listen. Blocks briefly when the worker
// pool is saturated rather than dropping events.
func (o *Orchestrator) Handle(aliasID string, commands []queue.Command) {
	o.tasks <- task{aliasID: aliasID, commands: commands}
}

// worker consumes tasks until the queue is closed or the context ends.
func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-o.tasks:
			if !ok {
				return
			}
			o.run(ctx, t)
		}
	}
}

// run executes one command event through every phase.
//
// The alias lock serializes overlapping events for the same device. The
// event is acknowledged in a deferred step regardless of outcome, so a
// failed run is cleared rather than retried.
func (o *Orchestrator) run(ctx context.Context, t task) {
	unlock := o.locks.Lock(t.aliasID)
	defer unlock()

	runCtx := ctx
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	phase := PhasePending
	var runErr error

	defer func() {
		if err := o.cfg.Queue.Acknowledge(t.aliasID); err != nil {
			o.cfg.Logger.Error("acknowledging command event failed",
				"alias_id", t.aliasID,
				"error", err,
			)
		}

		outcome := PhaseAcknowledged
		if runErr != nil {
			outcome = PhaseFailed
			o.cfg.Logger.Error("pipeline run failed",
				"alias_id", t.aliasID,
				"phase", string(phase),
				"commands", len(t.commands),
				"error", runErr,
			)
		} else {
			o.cfg.Logger.Info("pipeline run completed",
				"alias_id", t.aliasID,
				"commands", len(t.commands),
				"duration", time.Since(started),
			)
		}

		o.report(t, outcome, runErr, time.Since(started))
	}()

	phase = PhaseResolving
	res, err := o.cfg.Resolver.Resolve(runCtx, t.aliasID)
	if err != nil {
		runErr = err
		return
	}

	// One state snapshot per batch; every command translates against it.
	snapshot, err := o.cfg.States.Get(runCtx, t.aliasID)
	if err != nil {
		runErr = err
		return
	}

	phase = PhaseTranslating
	waveforms := make([]string, 0, len(t.commands))
	for _, cmd := range t.commands {
		key := Translate(cmd.Command, cmd.Params, snapshot)

		code, err := o.cfg.Codes.GetCode(runCtx, res.Remote.ID, cmd.Command, key)
		if err != nil {
			if errors.Is(err, registry.ErrCodeNotFound) {
				// No code captured for this key; the dispatcher skips
				// empty entries and the rest of the batch still runs.
				o.cfg.Logger.Warn("no IR code for command",
					"alias_id", t.aliasID,
					"remote_id", res.Remote.ID,
					"command", cmd.Command,
					"key", key,
				)
				waveforms = append(waveforms, "")
				continue
			}
			runErr = err
			return
		}
		waveforms = append(waveforms, code)
	}

	phase = PhaseDispatching
	dispatchStart := time.Now()
	if err := o.cfg.Dispatcher.Dispatch(runCtx, res.Remote.MACAddr, waveforms); err != nil {
		runErr = err
		return
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.WriteDispatchMetric(res.Remote.ID, len(waveforms), time.Since(dispatchStart))
	}

	phase = PhasePersisting
	for _, cmd := range t.commands {
		if err := o.cfg.States.Merge(runCtx, t.aliasID, cmd.Params); err != nil {
			runErr = err
			return
		}
	}

	phase = PhaseAcknowledged
}

// report emits metrics and the terminal notification for one run.
func (o *Orchestrator) report(t task, outcome Phase, runErr error, elapsed time.Duration) {
	if o.cfg.Metrics != nil {
		for _, cmd := range t.commands {
			o.cfg.Metrics.WriteExecutionMetric(t.aliasID, cmd.Command, string(outcome), elapsed)
		}
	}

	if o.cfg.Notifier != nil {
		event := Event{
			AliasID:    t.aliasID,
			Phase:      outcome,
			Commands:   len(t.commands),
			DurationMS: float64(elapsed.Milliseconds()),
		}
		if runErr != nil {
			event.Error = runErr.Error()
		}
		o.cfg.Notifier.Notify(event)
	}
}

// keyedMutex provides one lock per alias ID, released and garbage
// collected when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*aliasLock
}

type aliasLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the lock for a key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*aliasLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &aliasLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
