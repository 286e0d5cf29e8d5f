package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
	"github.com/luxbus-protocol/luxbus-go/pkg/poll"
	"github.com/luxbus-protocol/luxbus-go/pkg/protocol"
	"github.com/luxbus-protocol/luxbus-go/pkg/queue"
	"github.com/luxbus-protocol/luxbus-go/pkg/transport"
)

// Controller errors.
var (
	// ErrUnknownLoad indicates an address that is not in the load registry.
	ErrUnknownLoad = errors.New("load not configured")

	// ErrDuplicateLoad indicates two configured loads sharing an address.
	ErrDuplicateLoad = errors.New("duplicate load address")
)

// DefaultDebounceWindow is the grace period an "on" intent is held before
// it is submitted, giving an explicit level command the chance to
// withdraw it.
const DefaultDebounceWindow = 100 * time.Millisecond

// Load is one configured output on the bus.
type Load struct {
	// Address is the load's wire address.
	Address protocol.Address

	// Kind distinguishes relay from dimmer semantics.
	Kind protocol.Kind

	// Name is a human-readable label, used only for display.
	Name string
}

// LoadState is the last known state of a load, confirmed by a correlated
// status reply.
type LoadState struct {
	Address protocol.Address
	Kind    protocol.Kind
	Name    string

	// Raw is the native wire magnitude, Level the decoded percentage.
	Raw   int
	Level int

	// UpdatedAt is when the confirming reply arrived.
	UpdatedAt time.Time
}

// StatusFunc receives load state updates.
type StatusFunc func(state LoadState)

// StateFunc receives transport connectivity transitions.
type StateFunc func(oldState, newState transport.State)

// Config configures a Controller. Zero values fall back to the package
// defaults.
type Config struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0.
	Device string

	// BaudRate defaults to transport.DefaultBaudRate.
	BaudRate int

	// CommandTimeout bounds a single exchange. Defaults to
	// transport.DefaultCommandTimeout.
	CommandTimeout time.Duration

	// PollInterval is the delay between background status queries.
	// Defaults to poll.DefaultInterval.
	PollInterval time.Duration

	// DebounceWindow is how long an "on" intent is held before dispatch.
	// Defaults to DefaultDebounceWindow.
	DebounceWindow time.Duration

	// Loads is the registry of configured outputs. It also defines the
	// polling rotation, in order.
	Loads []Load

	// TraceLogger receives wire-level trace events. Nil disables tracing.
	TraceLogger buslog.Logger

	// OpenPort overrides how the serial port is opened. Tests use this to
	// substitute an in-memory port.
	OpenPort func() (transport.Port, error)
}

// Controller is the public facade over the queue, the transport, and the
// polling driver. All methods are safe for concurrent use.
type Controller struct {
	config Config

	transport *transport.Transport
	queue     *queue.Queue
	poller    *poll.Driver

	mu    sync.RWMutex
	loads map[protocol.Address]Load
	order []protocol.Address
	cache map[protocol.Address]LoadState

	subMu     sync.Mutex
	nextSubID int
	statusSub map[int]StatusFunc
	stateSub  map[int]StateFunc

	debounceMu sync.Mutex
	pendingOn  map[protocol.Address]*time.Timer
}

// New creates a controller from the given configuration. The serial port
// is not opened until Open is called.
func New(config Config) (*Controller, error) {
	if config.DebounceWindow <= 0 {
		config.DebounceWindow = DefaultDebounceWindow
	}

	c := &Controller{
		config:    config,
		loads:     make(map[protocol.Address]Load),
		cache:     make(map[protocol.Address]LoadState),
		statusSub: make(map[int]StatusFunc),
		stateSub:  make(map[int]StateFunc),
		pendingOn: make(map[protocol.Address]*time.Timer),
	}
	if err := c.setLoads(config.Loads); err != nil {
		return nil, err
	}

	c.transport = transport.New(transport.Config{
		Device:         config.Device,
		BaudRate:       config.BaudRate,
		CommandTimeout: config.CommandTimeout,
		TraceLogger:    config.TraceLogger,
		OpenPort:       config.OpenPort,
	}, &handlerAdapter{c: c})
	c.queue = queue.New(c.transport.Dispatch)
	c.poller = poll.New(config.PollInterval, c.submitPollQuery)

	return c, nil
}

// setLoads validates and installs the load registry.
func (c *Controller) setLoads(loads []Load) error {
	byAddr := make(map[protocol.Address]Load, len(loads))
	order := make([]protocol.Address, 0, len(loads))
	for _, load := range loads {
		if !load.Address.Valid() {
			return fmt.Errorf("%w: %q", protocol.ErrInvalidAddress, load.Address)
		}
		if _, dup := byAddr[load.Address]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLoad, load.Address)
		}
		byAddr[load.Address] = load
		order = append(order, load.Address)
	}

	c.mu.Lock()
	c.loads = byAddr
	c.order = order
	c.mu.Unlock()
	return nil
}

// SetLoads replaces the load registry and the polling rotation. The
// polling cursor restarts from the top of the new list.
func (c *Controller) SetLoads(loads []Load) error {
	if err := c.setLoads(loads); err != nil {
		return err
	}
	c.transport.SetKinds(c.kinds())
	c.poller.SetTargets(c.pollTargets())
	return nil
}

// Open opens the serial channel and readies the queue. Idempotent while
// open. Polling does not start until StartPolling.
func (c *Controller) Open() error {
	c.queue.Reopen()
	c.transport.SetKinds(c.kinds())
	return c.transport.Open()
}

// Close stops polling, rejects every queued and in-flight command, and
// releases the serial channel. Safe to call more than once.
func (c *Controller) Close() error {
	c.poller.Stop()
	c.cancelAllPendingOn()
	c.queue.Drain()
	return c.transport.Close()
}

// IsConnected reports whether the serial channel is open.
func (c *Controller) IsConnected() bool {
	return c.transport.State() == transport.StateOpen
}

// QueueDepth returns the number of commands waiting for dispatch.
func (c *Controller) QueueDepth() int {
	return c.queue.Len()
}

// Loads returns the configured loads in registry order.
func (c *Controller) Loads() []Load {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Load, 0, len(c.order))
	for _, addr := range c.order {
		out = append(out, c.loads[addr])
	}
	return out
}

// LastKnown returns the cached state for addr, if any reply has ever
// confirmed one.
func (c *Controller) LastKnown(addr protocol.Address) (LoadState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.cache[addr]
	return state, ok
}

// Query reads the current value of a load at high priority. ok=false
// with a nil error means the load did not reply within the command
// timeout, which on this bus is a normal condition.
func (c *Controller) Query(ctx context.Context, addr protocol.Address) (LoadState, bool, error) {
	if !addr.Valid() {
		return LoadState{}, false, fmt.Errorf("%w: %q", protocol.ErrInvalidAddress, addr)
	}

	cmd := c.queue.Submit(protocol.QueryCommand(addr), queue.PriorityHigh)
	res, err := cmd.Wait(ctx)
	if err != nil {
		return LoadState{}, false, err
	}
	if !res.Replied {
		return LoadState{}, false, nil
	}

	// The status handler ran before the exchange resolved, so the cache
	// already holds the confirmed state.
	state, _ := c.LastKnown(addr)
	return state, true, nil
}

// SetRelay switches a relay load and confirms the result with an
// immediate high-priority re-read. A pending debounced "on" for the same
// address is withdrawn first.
func (c *Controller) SetRelay(ctx context.Context, addr protocol.Address, on bool) (LoadState, bool, error) {
	return c.set(ctx, addr, protocol.RelayRaw(on))
}

// SetDimmer sets a dimmer load to the given percentage (clamped to
// [0,100]) and confirms the result with an immediate high-priority
// re-read. A pending debounced "on" for the same address is withdrawn
// first.
func (c *Controller) SetDimmer(ctx context.Context, addr protocol.Address, percent int) (LoadState, bool, error) {
	return c.set(ctx, addr, protocol.DimmerRaw(percent))
}

func (c *Controller) set(ctx context.Context, addr protocol.Address, raw int) (LoadState, bool, error) {
	if !addr.Valid() {
		return LoadState{}, false, fmt.Errorf("%w: %q", protocol.ErrInvalidAddress, addr)
	}
	c.cancelPendingOn(addr)

	cmd := c.queue.Submit(protocol.SetCommand(addr, raw), queue.PriorityHigh)
	if _, err := cmd.Wait(ctx); err != nil {
		return LoadState{}, false, err
	}

	return c.Query(ctx, addr)
}

// On schedules a full-on command for a registered load after the
// debounce window. An Off, SetRelay, or SetDimmer for the same address
// inside the window withdraws it. Fire-and-forget: the eventual set and
// its confirming re-read surface through the status subscribers.
func (c *Controller) On(addr protocol.Address) error {
	load, ok := c.lookupLoad(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLoad, addr)
	}

	raw := protocol.RawMax
	if load.Kind == protocol.KindSwitch {
		raw = protocol.RawRelayOn
	}

	c.debounceMu.Lock()
	if timer, exists := c.pendingOn[addr]; exists {
		timer.Stop()
	}
	c.pendingOn[addr] = time.AfterFunc(c.config.DebounceWindow, func() {
		c.debounceMu.Lock()
		delete(c.pendingOn, addr)
		c.debounceMu.Unlock()
		c.submitSetAndReread(addr, raw)
	})
	c.debounceMu.Unlock()
	return nil
}

// Off turns a registered load off immediately, withdrawing any pending
// debounced "on" first. Fire-and-forget like On.
func (c *Controller) Off(addr protocol.Address) error {
	if _, ok := c.lookupLoad(addr); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLoad, addr)
	}
	c.cancelPendingOn(addr)
	c.submitSetAndReread(addr, protocol.RawOff)
	return nil
}

// submitSetAndReread queues a high-priority set followed by the
// confirming re-read. Neither is waited on; the re-read's status event
// reaches subscribers and the cache through the transport handler.
func (c *Controller) submitSetAndReread(addr protocol.Address, raw int) {
	c.queue.Submit(protocol.SetCommand(addr, raw), queue.PriorityHigh)
	c.queue.Submit(protocol.QueryCommand(addr), queue.PriorityHigh)
}

// StartPolling begins the background status rotation over the registry.
// Idempotent while running.
func (c *Controller) StartPolling() {
	c.poller.SetTargets(c.pollTargets())
	c.poller.Start()
}

// StopPolling cancels the polling loop. Safe when not running.
func (c *Controller) StopPolling() {
	c.poller.Stop()
}

// Polling reports whether the background rotation is active.
func (c *Controller) Polling() bool {
	return c.poller.Running()
}

// SubscribeStatus registers fn for load state updates and returns its
// unsubscribe function.
func (c *Controller) SubscribeStatus(fn StatusFunc) func() {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.statusSub[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.statusSub, id)
		c.subMu.Unlock()
	}
}

// SubscribeState registers fn for connectivity transitions and returns
// its unsubscribe function.
func (c *Controller) SubscribeState(fn StateFunc) func() {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.stateSub[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.stateSub, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) lookupLoad(addr protocol.Address) (Load, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	load, ok := c.loads[addr]
	return load, ok
}

func (c *Controller) kinds() map[protocol.Address]protocol.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make(map[protocol.Address]protocol.Kind, len(c.loads))
	for addr, load := range c.loads {
		kinds[addr] = load.Kind
	}
	return kinds
}

func (c *Controller) pollTargets() []poll.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	targets := make([]poll.Target, 0, len(c.order))
	for _, addr := range c.order {
		targets = append(targets, poll.Target{Address: addr, Kind: c.loads[addr].Kind})
	}
	return targets
}

// submitPollQuery is the polling driver's submit hook. The completion
// handle is deliberately not waited on: a timed-out or rejected poll
// query must never stall the rotation, and failures are already traced
// by the transport.
func (c *Controller) submitPollQuery(addr protocol.Address) {
	c.queue.Submit(protocol.QueryCommand(addr), queue.PriorityNormal)
}

func (c *Controller) cancelPendingOn(addr protocol.Address) {
	c.debounceMu.Lock()
	if timer, ok := c.pendingOn[addr]; ok {
		timer.Stop()
		delete(c.pendingOn, addr)
	}
	c.debounceMu.Unlock()
}

func (c *Controller) cancelAllPendingOn() {
	c.debounceMu.Lock()
	for addr, timer := range c.pendingOn {
		timer.Stop()
		delete(c.pendingOn, addr)
	}
	c.debounceMu.Unlock()
}

// handlerAdapter feeds transport events into the controller without
// exporting handler methods on Controller itself.
type handlerAdapter struct {
	c *Controller
}

func (h *handlerAdapter) OnStatus(status transport.Status) {
	c := h.c

	load, _ := c.lookupLoad(status.Address)
	state := LoadState{
		Address:   status.Address,
		Kind:      status.Kind,
		Name:      load.Name,
		Raw:       status.Raw,
		Level:     status.Level,
		UpdatedAt: time.Now(),
	}

	c.mu.Lock()
	c.cache[status.Address] = state
	c.mu.Unlock()

	for _, fn := range c.statusSubscribers() {
		fn(state)
	}
}

func (h *handlerAdapter) OnStateChange(oldState, newState transport.State) {
	for _, fn := range h.c.stateSubscribers() {
		fn(oldState, newState)
	}
}

func (h *handlerAdapter) OnError(error) {
	// Hardware failures already tear the transport down and surface as a
	// state change; nothing extra to do here.
}

func (c *Controller) statusSubscribers() []StatusFunc {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]StatusFunc, 0, len(c.statusSub))
	for _, fn := range c.statusSub {
		out = append(out, fn)
	}
	return out
}

func (c *Controller) stateSubscribers() []StateFunc {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]StateFunc, 0, len(c.stateSub))
	for _, fn := range c.stateSub {
		out = append(out, fn)
	}
	return out
}
