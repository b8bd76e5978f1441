package animation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
	"github.com/nerrad567/dmx-core/internal/universe"
)

// defaultMaxFPS caps the frame rate of animation loops.
const defaultMaxFPS = 40

// Spec describes one animation: a target state for a set of mapped
// channels on one universe store, reached over Duration.
type Spec struct {
	// Store is the universe the animation writes to.
	Store *universe.Store

	// Mappings bind channel functions to DMX channels. Every channel
	// an animation touches must appear in exactly one mapping.
	Mappings []ChannelMapping

	// Target holds the end values (0-255) aligned with Mappings.
	Target []float64

	// Duration of the fade. Zero applies the target on the first
	// frame.
	Duration time.Duration

	// MinKelvin and MaxKelvin bound the tunable-white range; zero
	// selects the 2700-6500K defaults.
	MinKelvin float64
	MaxKelvin float64
}

// ownerKey identifies one DMX channel on one universe.
type ownerKey struct {
	addr    dmx.PortAddress
	channel int
}

// Engine runs animations and enforces exclusive channel ownership:
// starting an animation cancels any running animation that controls
// one of its channels, synchronously, before the new one claims them.
type Engine struct {
	log    *logging.Logger
	maxFPS int

	mu     sync.Mutex
	nextID int64
	owners map[ownerKey]int64
	tasks  map[int64]*task

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewEngine creates an animation engine. maxFPS caps the frame rate;
// zero selects the default of 40.
func NewEngine(maxFPS int, log *logging.Logger) *Engine {
	if maxFPS <= 0 {
		maxFPS = defaultMaxFPS
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		log:    log,
		maxFPS: maxFPS,
		owners: make(map[ownerKey]int64),
		tasks:  make(map[int64]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches an animation and returns its ID. Conflicting
// animations are cancelled before this one claims its channels, so
// the returned animation is the sole writer of every mapped channel.
func (e *Engine) Start(spec Spec) (int64, error) {
	if spec.Store == nil {
		return 0, fmt.Errorf("animation: nil store")
	}
	if len(spec.Mappings) == 0 {
		return 0, fmt.Errorf("animation: no channel mappings")
	}
	if len(spec.Target) != len(spec.Mappings) {
		return 0, fmt.Errorf("animation: %d target values for %d mappings", len(spec.Target), len(spec.Mappings))
	}
	for _, m := range spec.Mappings {
		if err := m.validate(); err != nil {
			return 0, err
		}
	}

	minK, maxK := spec.MinKelvin, spec.MaxKelvin
	if minK == 0 {
		minK = DefaultMinKelvin
	}
	if maxK == 0 {
		maxK = DefaultMaxKelvin
	}

	channels := controlledChannels(spec.Mappings)
	addr := spec.Store.Address()

	// Evict current owners before reading start values, so the start
	// state is whatever the cancelled animations last wrote.
	e.cancelConflicting(addr, channels)

	start := make([]float64, len(spec.Mappings))
	for i, m := range spec.Mappings {
		start[i] = m.readValue(spec.Store)
	}
	target := make([]float64, len(spec.Target))
	copy(target, spec.Target)
	applyZeroEpsilon(start, target)

	tk := &task{
		store:    spec.Store,
		mappings: spec.Mappings,
		channels: channels,
		duration: spec.Duration,
		frame:    chooseInterpolator(spec.Mappings, start, target, minK, maxK),
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	select {
	case <-e.ctx.Done():
		e.mu.Unlock()
		return 0, fmt.Errorf("animation: engine stopped")
	default:
	}
	e.nextID++
	tk.id = e.nextID
	taskCtx, taskCancel := context.WithCancel(e.ctx)
	tk.cancel = taskCancel
	e.tasks[tk.id] = tk
	for _, ch := range channels {
		e.owners[ownerKey{addr: addr, channel: ch}] = tk.id
	}
	e.mu.Unlock()

	e.logDebug("animation started",
		"id", tk.id,
		"universe", addr.String(),
		"channels", len(channels),
		"duration", spec.Duration.String(),
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		tk.run(taskCtx, time.Second/time.Duration(e.maxFPS))
		e.release(tk)
		// done closes only after ownership is released, so waiters
		// observe a fully cleaned-up task.
		close(tk.done)
	}()

	return tk.id, nil
}

// release is the single cleanup path for a finished or cancelled
// task: ownership is dropped only where the task is still the owner,
// so a successor that already claimed a channel keeps it.
func (e *Engine) release(tk *task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	addr := tk.store.Address()
	for _, ch := range tk.channels {
		key := ownerKey{addr: addr, channel: ch}
		if e.owners[key] == tk.id {
			delete(e.owners, key)
		}
	}
	delete(e.tasks, tk.id)
}

// cancelConflicting stops every animation owning one of the channels
// and waits for its frame loop to exit.
func (e *Engine) cancelConflicting(addr dmx.PortAddress, channels []int) {
	e.mu.Lock()
	conflicting := make(map[int64]*task)
	for _, ch := range channels {
		if id, ok := e.owners[ownerKey{addr: addr, channel: ch}]; ok {
			if tk, running := e.tasks[id]; running {
				conflicting[id] = tk
			}
		}
	}
	e.mu.Unlock()

	for id, tk := range conflicting {
		tk.cancel()
		<-tk.done
		e.logDebug("animation cancelled by successor", "id", id)
	}
}

// Cancel stops one animation and waits for it to exit. Unknown IDs
// are a no-op.
func (e *Engine) Cancel(id int64) {
	e.mu.Lock()
	tk, ok := e.tasks[id]
	e.mu.Unlock()
	if !ok {
		return
	}
	tk.cancel()
	<-tk.done
}

// CancelAll stops every running animation and waits for them.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	tasks := make([]*task, 0, len(e.tasks))
	for _, tk := range e.tasks {
		tasks = append(tasks, tk)
	}
	e.mu.Unlock()

	for _, tk := range tasks {
		tk.cancel()
		<-tk.done
	}
}

// Stop cancels everything and shuts the engine down. Safe to call
// more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
	})
}

// ActiveCount returns the number of running animations.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// ControlledChannels returns the channels on a universe currently
// owned by animations, sorted.
func (e *Engine) ControlledChannels(addr dmx.PortAddress) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var channels []int
	for key := range e.owners {
		if key.addr == addr {
			channels = append(channels, key.channel)
		}
	}
	sort.Ints(channels)
	return channels
}

// controlledChannels flattens mapping indexes into a deduplicated,
// sorted channel list.
func controlledChannels(mappings []ChannelMapping) []int {
	seen := make(map[int]struct{})
	for _, m := range mappings {
		for _, idx := range m.Indexes {
			seen[idx] = struct{}{}
		}
	}
	channels := make([]int, 0, len(seen))
	for ch := range seen {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	return channels
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.log != nil {
		e.log.Debug(msg, args...)
	}
}
