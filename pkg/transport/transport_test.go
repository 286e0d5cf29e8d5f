package transport

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luxbus-protocol/luxbus-go/pkg/protocol"
	"github.com/luxbus-protocol/luxbus-go/pkg/queue"
)

// fakePort is an in-memory Port where the test plays the hardware side:
// commands written by the transport appear on the commands channel, and
// reply injects bytes into the transport's reader.
type fakePort struct {
	reader *io.PipeReader
	hw     *io.PipeWriter

	mu       sync.Mutex
	writeErr error

	commands chan string
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{
		reader:   r,
		hw:       w,
		commands: make(chan string, 16),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	err := p.writeErr
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	p.commands <- string(b)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.reader.Close()
	p.hw.Close()
	return nil
}

func (p *fakePort) failWrites(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// reply sends a terminated line from the "hardware" to the transport.
func (p *fakePort) reply(line string) {
	go io.WriteString(p.hw, line+"\r")
}

// expectCommand waits for the next command written to the wire.
func (p *fakePort) expectCommand(t *testing.T) string {
	t.Helper()
	select {
	case cmd := <-p.commands:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command written to the wire")
		return ""
	}
}

// recordingHandler collects transport events.
type recordingHandler struct {
	mu       sync.Mutex
	statuses []Status
	states   []State
	errs     []error

	statusCh chan Status
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{statusCh: make(chan Status, 16)}
}

func (h *recordingHandler) OnStatus(status Status) {
	h.mu.Lock()
	h.statuses = append(h.statuses, status)
	h.mu.Unlock()
	h.statusCh <- status
}

func (h *recordingHandler) OnStateChange(oldState, newState State) {
	h.mu.Lock()
	h.states = append(h.states, newState)
	h.mu.Unlock()
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *recordingHandler) statusCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.statuses)
}

func (h *recordingHandler) errorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func newTestTransport(t *testing.T, timeout time.Duration) (*Transport, *fakePort, *recordingHandler) {
	t.Helper()
	port := newFakePort()
	handler := newRecordingHandler()
	tr := New(Config{
		Device:         "fake",
		CommandTimeout: timeout,
		OpenPort:       func() (Port, error) { return port, nil },
	}, handler)
	if err := tr.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, port, handler
}

func TestOpenIsIdempotent(t *testing.T) {
	tr, _, _ := newTestTransport(t, time.Second)

	if err := tr.Open(); err != nil {
		t.Errorf("second Open = %v, want nil", err)
	}
	if tr.State() != StateOpen {
		t.Errorf("State = %v, want OPEN", tr.State())
	}
}

func TestOpenFailureSurfacesError(t *testing.T) {
	boom := errors.New("no such device")
	tr := New(Config{
		Device:   "/dev/missing",
		OpenPort: func() (Port, error) { return nil, boom },
	}, newRecordingHandler())

	if err := tr.Open(); !errors.Is(err, boom) {
		t.Errorf("Open error = %v, want %v", err, boom)
	}
	if tr.State() != StateClosed {
		t.Errorf("State after failed open = %v, want CLOSED", tr.State())
	}
}

func TestQueryCorrelatesReply(t *testing.T) {
	tr, port, handler := newTestTransport(t, time.Second)
	tr.SetKinds(map[protocol.Address]protocol.Kind{
		"01-1": protocol.KindDimmer,
		"05-1": protocol.KindSwitch,
	})

	done := make(chan queue.Result, 1)
	go func() {
		res, err := tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("01-1")})
		if err != nil {
			t.Errorf("Dispatch error: %v", err)
		}
		done <- res
	}()

	if cmd := port.expectCommand(t); cmd != " 18 01-1\r" {
		t.Errorf("wire command = %q, want %q", cmd, " 18 01-1\r")
	}
	port.reply("18 125")

	res := <-done
	if !res.Replied || res.Line != "18 125" {
		t.Errorf("Result = %+v, want replied 18 125", res)
	}

	status := <-handler.statusCh
	if status.Address != "01-1" || status.Raw != 125 || status.Level != 50 {
		t.Errorf("Status = %+v, want 01-1 raw 125 level 50", status)
	}
	if !status.KindKnown || status.Kind != protocol.KindDimmer {
		t.Errorf("Status kind = %v known=%v, want DIMMER known", status.Kind, status.KindKnown)
	}
}

func TestRelayStatusDecoding(t *testing.T) {
	tr, port, handler := newTestTransport(t, time.Second)
	tr.SetKinds(map[protocol.Address]protocol.Kind{"05-1": protocol.KindSwitch})

	go tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("05-1")})
	port.expectCommand(t)
	port.reply("18 000")

	status := <-handler.statusCh
	if status.Address != "05-1" || status.Raw != 0 || status.Level != 0 {
		t.Errorf("Status = %+v, want 05-1 raw 0 level 0", status)
	}
}

func TestTimeoutResolvesWithoutReply(t *testing.T) {
	tr, port, _ := newTestTransport(t, 30*time.Millisecond)

	res, err := tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("09-1")})
	if err != nil {
		t.Fatalf("Dispatch error = %v, want nil on timeout", err)
	}
	if res.Replied {
		t.Errorf("Result = %+v, want no reply", res)
	}

	// The channel must still dispatch the next command.
	done := make(chan queue.Result, 1)
	go func() {
		res, err := tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("01-1")})
		if err != nil {
			t.Errorf("second Dispatch error: %v", err)
		}
		done <- res
	}()
	port.expectCommand(t) // first command is still in the channel buffer
	port.expectCommand(t)
	port.reply("18 050")
	if res := <-done; !res.Replied {
		t.Error("second dispatch did not resolve with the reply")
	}
}

func TestSetCommandDoesNotEmitStatus(t *testing.T) {
	tr, port, handler := newTestTransport(t, time.Second)

	done := make(chan queue.Result, 1)
	go func() {
		res, _ := tr.Dispatch(&queue.Command{Text: protocol.SetCommand("01-1", 125)})
		done <- res
	}()

	if cmd := port.expectCommand(t); cmd != " 10 01-1 125\r" {
		t.Errorf("wire command = %q, want %q", cmd, " 10 01-1 125\r")
	}
	port.reply("10 125")

	res := <-done
	if !res.Replied || res.Line != "10 125" {
		t.Errorf("Result = %+v, want replied 10 125", res)
	}
	if handler.statusCount() != 0 {
		t.Errorf("status events = %d, want 0 for a set command", handler.statusCount())
	}
}

func TestUnsolicitedLineIsDiscarded(t *testing.T) {
	tr, port, handler := newTestTransport(t, time.Second)

	port.reply("18 250")
	time.Sleep(50 * time.Millisecond)

	if handler.statusCount() != 0 {
		t.Errorf("status events = %d, want 0 for uncorrelated line", handler.statusCount())
	}
	if tr.State() != StateOpen {
		t.Errorf("State = %v, want OPEN", tr.State())
	}
}

func TestDispatchWhenClosedFails(t *testing.T) {
	tr := New(Config{
		Device:   "fake",
		OpenPort: func() (Port, error) { return newFakePort(), nil },
	}, newRecordingHandler())

	_, err := tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("01-1")})
	if !errors.Is(err, ErrNotOpen) {
		t.Errorf("Dispatch error = %v, want ErrNotOpen", err)
	}
}

func TestWriteFailureFailsOnlyThatCommand(t *testing.T) {
	tr, port, _ := newTestTransport(t, time.Second)

	boom := errors.New("io failure")
	port.failWrites(boom)
	_, err := tr.Dispatch(&queue.Command{Text: protocol.SetCommand("01-1", 0)})
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch error = %v, want wrapped %v", err, boom)
	}
	if tr.State() != StateOpen {
		t.Errorf("State after write failure = %v, want OPEN", tr.State())
	}

	// Next dispatch proceeds once writes recover.
	port.failWrites(nil)
	done := make(chan struct{})
	go func() {
		tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("01-1")})
		close(done)
	}()
	port.expectCommand(t)
	port.reply("18 000")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch after write failure never resolved")
	}
}

func TestCloseRejectsInFlightExchange(t *testing.T) {
	tr, port, _ := newTestTransport(t, 5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("01-1")})
		errCh <- err
	}()
	port.expectCommand(t)

	tr.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosing) {
			t.Errorf("in-flight error = %v, want ErrClosing", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight dispatch never resolved after Close")
	}

	if tr.State() != StateClosed {
		t.Errorf("State = %v, want CLOSED", tr.State())
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestHardwareFailureEmitsError(t *testing.T) {
	tr, port, handler := newTestTransport(t, time.Second)

	// Hardware drops without a deliberate Close.
	port.hw.CloseWithError(errors.New("usb adapter unplugged"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.State() == StateClosed && handler.errorCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state = %v, errors = %d; want CLOSED with an error", tr.State(), handler.errorCount())
}

func TestReopenAfterClose(t *testing.T) {
	port := newFakePort()
	opens := 0
	tr := New(Config{
		Device: "fake",
		OpenPort: func() (Port, error) {
			opens++
			if opens > 1 {
				port = newFakePort()
			}
			return port, nil
		},
		CommandTimeout: time.Second,
	}, newRecordingHandler())

	if err := tr.Open(); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	tr.Close()
	if err := tr.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tr.Close()

	done := make(chan queue.Result, 1)
	go func() {
		res, err := tr.Dispatch(&queue.Command{Text: protocol.QueryCommand("02-2")})
		if err != nil {
			t.Errorf("Dispatch after reopen: %v", err)
		}
		done <- res
	}()
	cmd := port.expectCommand(t)
	if !strings.HasPrefix(cmd, " 18 02-2") {
		t.Errorf("wire command = %q", cmd)
	}
	port.reply("18 001")
	if res := <-done; !res.Replied {
		t.Error("dispatch after reopen did not resolve")
	}
}
