// Package poll provides the background polling driver that keeps load
// status fresh.
//
// The driver holds an ordered list of poll targets and a rotating
// cursor. Every tick it submits one normal-priority status query for the
// address under the cursor, advances the cursor circularly, and
// reschedules itself after the polling interval no matter how the query
// turned out. Submission must never block: queries go into the priority
// queue and resolve on their own time, so a slow or dead bus cannot
// stall the loop.
package poll

import (
	"sync"
	"time"

	"github.com/luxbus-protocol/luxbus-go/pkg/protocol"
)

// DefaultInterval is the default delay between polling ticks.
const DefaultInterval = 2000 * time.Millisecond

// Target is one entry in the polling rotation.
type Target struct {
	// Address is the load to query.
	Address protocol.Address

	// Kind is the load kind, carried for the transport's status tagging.
	Kind protocol.Kind
}

// SubmitFunc submits a normal-priority status query for addr. It must
// not block; failures are the submitter's to log, never the driver's to
// act on.
type SubmitFunc func(addr protocol.Address)

// Driver is the self-rescheduling polling loop. All methods are safe for
// concurrent use.
type Driver struct {
	submit   SubmitFunc
	interval time.Duration

	mu      sync.Mutex
	targets []Target
	cursor  int
	timer   *time.Timer
	running bool
}

// New creates a driver that fires submit every interval. A zero interval
// falls back to DefaultInterval.
func New(interval time.Duration, submit SubmitFunc) *Driver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Driver{
		submit:   submit,
		interval: interval,
	}
}

// SetTargets replaces the polling rotation and resets the cursor, so a
// shorter list can never leave the cursor out of range. The slice is
// copied. An empty list is fine: a running loop keeps rescheduling and
// no-ops until targets appear.
func (d *Driver) SetTargets(targets []Target) {
	copied := make([]Target, len(targets))
	copy(copied, targets)

	d.mu.Lock()
	d.targets = copied
	d.cursor = 0
	d.mu.Unlock()
}

// Start begins the polling loop. Idempotent: starting a running driver
// is a no-op.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.timer = time.AfterFunc(d.interval, d.tick)
}

// Stop cancels the outstanding tick. Safe to call when not running.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.running = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Running reports whether the loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// tick submits one query and unconditionally re-arms the timer. The
// reschedule does not wait for the query to resolve; the queue owns
// that.
func (d *Driver) tick() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}

	var target *Target
	if len(d.targets) > 0 {
		t := d.targets[d.cursor%len(d.targets)]
		target = &t
		d.cursor = (d.cursor + 1) % len(d.targets)
	}

	d.timer = time.AfterFunc(d.interval, d.tick)
	d.mu.Unlock()

	if target != nil {
		d.submit(target.Address)
	}
}
