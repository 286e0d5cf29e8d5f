package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Queue errors.
var (
	// ErrCanceled indicates the command was removed from the queue before
	// it could be dispatched.
	ErrCanceled = errors.New("command canceled before dispatch")

	// ErrDrained indicates the queue was drained (shutdown) while the
	// command was still pending or in flight.
	ErrDrained = errors.New("command queue drained")
)

// Priority classes. High always drains before normal.
type Priority uint8

const (
	// PriorityHigh is for user-initiated commands.
	PriorityHigh Priority = 0

	// PriorityNormal is for background polling traffic.
	PriorityNormal Priority = 1
)

// String returns the priority class name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a successfully processed command.
// Replied=false means the hardware said nothing before the command
// timeout; on this bus that is a normal condition (unpowered module),
// not an error.
type Result struct {
	// Line is the trimmed reply line, valid only when Replied is true.
	Line string

	// Replied indicates whether a reply arrived before the timeout.
	Replied bool
}

// Processor executes a single command against the bus and blocks until
// the exchange resolves. Exactly one Processor call is in progress at any
// time.
type Processor func(cmd *Command) (Result, error)

// Command is a queued entry. It is owned by the queue until dispatched,
// then by the processor until it resolves, and is completed exactly once.
type Command struct {
	// Text is the fully formed protocol payload, excluding the terminator.
	Text string

	// Priority is the command's class.
	Priority Priority

	// SubmittedAt records when the command entered the queue.
	SubmittedAt time.Time

	once sync.Once
	done chan outcome
}

type outcome struct {
	res Result
	err error
}

func newCommand(text string, priority Priority) *Command {
	return &Command{
		Text:        text,
		Priority:    priority,
		SubmittedAt: time.Now(),
		done:        make(chan outcome, 1),
	}
}

// complete resolves the command. Later calls are no-ops, so a drain
// racing the processor's own completion cannot double-resolve.
func (c *Command) complete(res Result, err error) {
	c.once.Do(func() {
		c.done <- outcome{res: res, err: err}
	})
}

// Wait blocks until the command resolves or ctx is done.
func (c *Command) Wait(ctx context.Context) (Result, error) {
	select {
	case out := <-c.done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Queue is the priority-ordered command buffer. All methods are safe for
// concurrent use.
type Queue struct {
	mu        sync.Mutex
	entries   []*Command
	inFlight  *Command
	busy      bool
	drained   bool
	processor Processor
}

// New creates a queue that hands commands to the given processor.
func New(processor Processor) *Queue {
	return &Queue{processor: processor}
}

// Submit enqueues command text and returns its completion handle without
// blocking. High-priority entries are inserted ahead of every normal
// entry but behind earlier high entries.
func (q *Queue) Submit(text string, priority Priority) *Command {
	cmd := newCommand(text, priority)

	q.mu.Lock()
	if q.drained {
		q.mu.Unlock()
		cmd.complete(Result{}, ErrDrained)
		return cmd
	}

	if priority == PriorityHigh {
		pos := len(q.entries)
		for i, e := range q.entries {
			if e.Priority == PriorityNormal {
				pos = i
				break
			}
		}
		q.entries = append(q.entries, nil)
		copy(q.entries[pos+1:], q.entries[pos:])
		q.entries[pos] = cmd
	} else {
		q.entries = append(q.entries, cmd)
	}
	q.mu.Unlock()

	q.kick()
	return cmd
}

// CancelClass removes every not-yet-dispatched entry of the given class,
// rejecting each handle with ErrCanceled. It returns the number of
// entries removed. The in-flight command, if any, is unaffected.
func (q *Queue) CancelClass(priority Priority) int {
	q.mu.Lock()
	var kept []*Command
	var removed []*Command
	for _, e := range q.entries {
		if e.Priority == priority {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	q.mu.Unlock()

	for _, e := range removed {
		e.complete(Result{}, ErrCanceled)
	}
	return len(removed)
}

// Drain rejects every pending entry and the in-flight command with
// ErrDrained and refuses further submissions. Used at shutdown so no
// caller is left hanging. Safe to call more than once.
func (q *Queue) Drain() {
	q.mu.Lock()
	q.drained = true
	pending := q.entries
	inFlight := q.inFlight
	q.entries = nil
	q.mu.Unlock()

	for _, e := range pending {
		e.complete(Result{}, ErrDrained)
	}
	if inFlight != nil {
		inFlight.complete(Result{}, ErrDrained)
	}
}

// Reopen clears the drained state so the queue accepts submissions again.
// Used when the transport is reopened after a close.
func (q *Queue) Reopen() {
	q.mu.Lock()
	q.drained = false
	q.mu.Unlock()
}

// Len returns the number of pending (undispatched) entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Busy reports whether a dispatch is currently in progress.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// kick starts a dispatch if the queue is idle and non-empty.
func (q *Queue) kick() {
	q.mu.Lock()
	if q.busy || q.drained || len(q.entries) == 0 {
		q.mu.Unlock()
		return
	}
	cmd := q.entries[0]
	q.entries = q.entries[1:]
	q.busy = true
	q.inFlight = cmd
	q.mu.Unlock()

	go q.run(cmd)
}

// run processes a single command, then schedules the next dispatch on a
// fresh goroutine so sustained load never grows the stack.
func (q *Queue) run(cmd *Command) {
	res, err := q.processor(cmd)
	cmd.complete(res, err)

	q.mu.Lock()
	q.busy = false
	q.inFlight = nil
	more := len(q.entries) > 0 && !q.drained
	q.mu.Unlock()

	if more {
		go q.kick()
	}
}
