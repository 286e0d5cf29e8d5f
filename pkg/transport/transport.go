package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
	"github.com/luxbus-protocol/luxbus-go/pkg/protocol"
	"github.com/luxbus-protocol/luxbus-go/pkg/queue"
)

// Channel states.
type State int

const (
	// StateClosed indicates no channel is held.
	StateClosed State = iota

	// StateOpening indicates the channel is being opened.
	StateOpening

	// StateOpen indicates an active channel.
	StateOpen
)

// String returns the channel state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Transport errors.
var (
	// ErrNotOpen indicates the channel is not open.
	ErrNotOpen = errors.New("channel not open")

	// ErrOpening indicates an open is already in progress.
	ErrOpening = errors.New("open already in progress")

	// ErrClosing indicates the channel closed while a command was in flight.
	ErrClosing = errors.New("channel closing")

	// ErrExchangePending indicates a dispatch was attempted while another
	// exchange was outstanding. Unreachable when all dispatch goes through
	// the queue, which serializes processing.
	ErrExchangePending = errors.New("another exchange is outstanding")
)

// Default configuration values.
const (
	// DefaultBaudRate is the bus's standard rate.
	DefaultBaudRate = 9600

	// DefaultCommandTimeout bounds the wait for a reply to one command.
	DefaultCommandTimeout = 1000 * time.Millisecond
)

// Config configures a Transport.
type Config struct {
	// Device is the serial device path, e.g. "/dev/ttyUSB0".
	Device string

	// BaudRate is the serial speed (default: 9600, always 8-N-1 framing).
	BaudRate int

	// CommandTimeout is how long a dispatched command waits for a reply
	// before resolving with no reply (default: 1s).
	CommandTimeout time.Duration

	// TraceLogger receives bus trace events. nil disables tracing.
	TraceLogger buslog.Logger

	// OpenPort overrides how the physical channel is opened. nil means
	// open Device as a serial port. Tests use this to supply an
	// in-memory pipe.
	OpenPort func() (Port, error)
}

// DefaultConfig returns the default transport configuration for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:         device,
		BaudRate:       DefaultBaudRate,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// exchange is the single in-flight request awaiting a reply. Never more
// than one exists at a time; that is the engine's core invariant, since
// the wire protocol has no request identifiers.
type exchange struct {
	addr      protocol.Address
	kind      protocol.Kind
	kindKnown bool
	isQuery   bool
	sentAt    time.Time
	lineCh    chan string
}

// Transport owns the serial channel: it frames outgoing commands,
// demultiplexes incoming carriage-return delimited lines, and matches
// each line to the outstanding exchange. It implements queue.Processor
// via Dispatch.
type Transport struct {
	config  Config
	handler Handler

	state atomic.Int32

	// mu guards port, sessionID and closeCh across open/close/dispatch.
	mu        sync.Mutex
	port      Port
	sessionID string
	closeCh   chan struct{}

	// pendingMu guards the single pending-exchange slot, shared between
	// the dispatching goroutine and the reader goroutine.
	pendingMu sync.Mutex
	pending   *exchange

	kindsMu sync.RWMutex
	kinds   map[protocol.Address]protocol.Kind
}

// New creates a transport (channel not yet open).
func New(config Config, handler Handler) *Transport {
	if config.BaudRate == 0 {
		config.BaudRate = DefaultBaudRate
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	if config.TraceLogger == nil {
		config.TraceLogger = buslog.NoopLogger{}
	}
	if config.OpenPort == nil {
		device, baud := config.Device, config.BaudRate
		config.OpenPort = func() (Port, error) {
			return OpenSerialPort(device, baud)
		}
	}

	t := &Transport{
		config:  config,
		handler: handler,
	}
	t.state.Store(int32(StateClosed))
	return t
}

// State returns the current channel state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// IsOpen reports whether the channel is open.
func (t *Transport) IsOpen() bool {
	return t.State() == StateOpen
}

// SetKinds replaces the address-to-kind registry used to tag status
// events. The map is copied.
func (t *Transport) SetKinds(kinds map[protocol.Address]protocol.Kind) {
	copied := make(map[protocol.Address]protocol.Kind, len(kinds))
	for addr, kind := range kinds {
		copied[addr] = kind
	}
	t.kindsMu.Lock()
	t.kinds = copied
	t.kindsMu.Unlock()
}

func (t *Transport) lookupKind(addr protocol.Address) (protocol.Kind, bool) {
	t.kindsMu.RLock()
	defer t.kindsMu.RUnlock()
	kind, ok := t.kinds[addr]
	return kind, ok
}

// Open opens the channel and starts the line reader. It is idempotent: a
// no-op when the channel is already open.
func (t *Transport) Open() error {
	if !t.state.CompareAndSwap(int32(StateClosed), int32(StateOpening)) {
		if t.State() == StateOpen {
			return nil
		}
		return ErrOpening
	}
	t.notifyStateChange(StateClosed, StateOpening, "")

	port, err := t.config.OpenPort()
	if err != nil {
		t.state.Store(int32(StateClosed))
		t.notifyStateChange(StateOpening, StateClosed, "open failed")
		t.traceError(err, "open")
		return fmt.Errorf("open failed: %w", err)
	}

	t.mu.Lock()
	t.port = port
	t.sessionID = uuid.NewString()
	t.closeCh = make(chan struct{})
	closeCh := t.closeCh
	t.mu.Unlock()

	go t.readLoop(port, closeCh)

	t.state.Store(int32(StateOpen))
	t.notifyStateChange(StateOpening, StateOpen, "")
	return nil
}

// Close tears down the channel: the outstanding exchange (if any) is
// failed with ErrClosing and the port is released. Idempotent; leaves no
// dangling timers (dispatch timers are stopped by their own goroutines
// when the exchange resolves).
func (t *Transport) Close() error {
	return t.teardown("")
}

// teardown moves the channel to closed. reason annotates the trace.
func (t *Transport) teardown(reason string) error {
	t.mu.Lock()
	port := t.port
	closeCh := t.closeCh
	t.port = nil
	t.closeCh = nil
	t.mu.Unlock()

	if port == nil {
		return nil
	}

	old := t.State()
	t.state.Store(int32(StateClosed))

	// Unblock a dispatcher waiting on the reply-or-timeout race.
	close(closeCh)

	err := port.Close()
	t.notifyStateChange(old, StateClosed, reason)
	return err
}

// Dispatch executes one command against the bus: write, then wait for
// the next line, the command timeout, or channel close, whichever comes
// first. It is the processor callback registered with the queue, which
// guarantees serialized calls.
func (t *Transport) Dispatch(cmd *queue.Command) (queue.Result, error) {
	if t.State() != StateOpen {
		return queue.Result{}, ErrNotOpen
	}

	ex := &exchange{
		sentAt: time.Now(),
		lineCh: make(chan string, 1),
	}
	if addr, ok := protocol.QueryTarget(cmd.Text); ok {
		// The reply will not repeat the address; capture it now.
		ex.addr = addr
		ex.isQuery = true
		ex.kind, ex.kindKnown = t.lookupKind(addr)
	}

	t.pendingMu.Lock()
	if t.pending != nil {
		t.pendingMu.Unlock()
		return queue.Result{}, ErrExchangePending
	}
	t.pending = ex
	t.pendingMu.Unlock()

	t.mu.Lock()
	port := t.port
	closeCh := t.closeCh
	t.mu.Unlock()
	if port == nil {
		t.takePending(ex)
		return queue.Result{}, ErrNotOpen
	}

	t.traceCommand(cmd, ex)

	frame := append([]byte(cmd.Text), protocol.Terminator)
	if _, err := port.Write(frame); err != nil {
		t.takePending(ex)
		t.traceError(err, "write")
		return queue.Result{}, fmt.Errorf("write failed: %w", err)
	}

	timer := time.NewTimer(t.config.CommandTimeout)
	defer timer.Stop()

	select {
	case line := <-ex.lineCh:
		return queue.Result{Line: line, Replied: true}, nil

	case <-timer.C:
		if t.takePending(ex) {
			// No reply. Normal on this bus: an unpowered module says
			// nothing. Resolve, don't reject.
			return queue.Result{Replied: false}, nil
		}
		// The reader claimed the exchange just as the timer fired; the
		// line is already on its way.
		return queue.Result{Line: <-ex.lineCh, Replied: true}, nil

	case <-closeCh:
		t.takePending(ex)
		return queue.Result{}, ErrClosing
	}
}

// takePending removes ex from the pending slot if it still holds it.
func (t *Transport) takePending(ex *exchange) bool {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.pending != ex {
		return false
	}
	t.pending = nil
	return true
}

// readLoop splits the incoming byte stream on carriage returns and hands
// each line to the correlator. It exits when the port is closed.
func (t *Transport) readLoop(port Port, closeCh chan struct{}) {
	scanner := bufio.NewScanner(port)
	scanner.Split(scanCR)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		t.handleLine(line)
	}

	select {
	case <-closeCh:
		// Deliberate close.
		return
	default:
	}

	err := scanner.Err()
	if err == nil {
		err = errors.New("serial channel closed by hardware")
	}
	t.traceError(err, "read")
	t.teardown("read error")
	if t.handler != nil {
		t.handler.OnError(fmt.Errorf("read error: %w", err))
	}
}

// handleLine matches one incoming line to the outstanding exchange.
func (t *Transport) handleLine(line string) {
	t.pendingMu.Lock()
	ex := t.pending
	t.pending = nil
	t.pendingMu.Unlock()

	if ex == nil {
		// Nothing outstanding: the line cannot be correlated to any
		// request. Trace and drop.
		t.traceLine(line, nil, nil)
		return
	}

	var raw *int
	if ex.isQuery {
		if value, ok := protocol.ParseStatus(line); ok {
			raw = &value
			if t.handler != nil {
				t.handler.OnStatus(Status{
					Address:   ex.addr,
					Kind:      ex.kind,
					KindKnown: ex.kindKnown,
					Raw:       value,
					Level:     protocol.Level(value),
				})
			}
		}
	}
	t.traceLine(line, ex, raw)

	ex.lineCh <- line
}

// scanCR is a bufio.SplitFunc for carriage-return terminated lines.
func scanCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, protocol.Terminator); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// notifyStateChange notifies the handler and trace log of state changes.
func (t *Transport) notifyStateChange(oldState, newState State, reason string) {
	if t.handler != nil {
		t.handler.OnStateChange(oldState, newState)
	}
	t.config.TraceLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: t.currentSessionID(),
		Device:    t.config.Device,
		Direction: buslog.DirectionOut,
		Category:  buslog.CategoryState,
		StateChange: &buslog.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (t *Transport) currentSessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *Transport) traceCommand(cmd *queue.Command, ex *exchange) {
	t.config.TraceLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: t.currentSessionID(),
		Device:    t.config.Device,
		Direction: buslog.DirectionOut,
		Category:  buslog.CategoryCommand,
		Command: &buslog.CommandEvent{
			Text:     cmd.Text,
			Priority: cmd.Priority.String(),
			Address:  ex.addr.String(),
		},
	})
}

func (t *Transport) traceLine(line string, ex *exchange, raw *int) {
	event := buslog.Event{
		Timestamp: time.Now(),
		SessionID: t.currentSessionID(),
		Device:    t.config.Device,
		Direction: buslog.DirectionIn,
		Category:  buslog.CategoryLine,
		Line: &buslog.LineEvent{
			Text:       line,
			Correlated: ex != nil,
			Raw:        raw,
		},
	}
	if ex != nil {
		event.Line.Address = ex.addr.String()
		latency := time.Since(ex.sentAt)
		event.Line.Latency = &latency
	}
	t.config.TraceLogger.Log(event)
}

func (t *Transport) traceError(err error, context string) {
	t.config.TraceLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: t.currentSessionID(),
		Device:    t.config.Device,
		Direction: buslog.DirectionOut,
		Category:  buslog.CategoryError,
		Error: &buslog.ErrorEventData{
			Message: err.Error(),
			Context: context,
		},
	})
}
