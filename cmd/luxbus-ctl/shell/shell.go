// Package shell implements the interactive command loop for luxbus-ctl.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/luxbus-protocol/luxbus-go/pkg/controller"
	"github.com/luxbus-protocol/luxbus-go/pkg/protocol"
)

// commandTimeout bounds a single interactive command, well above the
// engine's own per-exchange timeout so the engine decides first.
const commandTimeout = 10 * time.Second

// Shell is the interactive operator console.
type Shell struct {
	ctl *controller.Controller
	rl  *readline.Instance

	unwatch func()
}

// New creates a shell bound to the given controller.
func New(ctl *controller.Controller) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "luxbus> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{ctl: ctl, rl: rl}, nil
}

// Interrupt closes the input loop from another goroutine, e.g. on a
// process signal.
func (s *Shell) Interrupt() {
	s.rl.Close()
}

// Run executes the command loop until quit, EOF, or Interrupt.
func (s *Shell) Run() {
	defer s.rl.Close()
	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil { // io.EOF or closed
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "loads", "ls":
			s.cmdLoads()

		case "on":
			s.cmdOn(args)

		case "off":
			s.cmdOff(args)

		case "dim":
			s.cmdDim(args)

		case "query", "q":
			s.cmdQuery(args)

		case "watch", "w":
			s.cmdWatch()

		case "poll":
			s.cmdPoll(args)

		case "status":
			s.cmdStatus()

		case "quit", "exit":
			fmt.Fprintln(s.out(), "Closing bus...")
			return

		default:
			fmt.Fprintf(s.out(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) out() io.Writer {
	return s.rl.Stdout()
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out(), `
Lighting Bus Commands:
  loads                 - List configured loads and last known levels
  on <load>             - Turn a load on
  off <load>            - Turn a load off
  dim <load> <percent>  - Set a dimmer level (0-100)
  query <load>          - Read a load's current value from the bus
  watch                 - Toggle live status printing
  poll on|off           - Start/stop background polling
  status                - Show connection and queue state
  help                  - Show this help
  quit                  - Close the bus and exit

Loads may be named by address (01-1) or by configured name.`)
}

// resolve maps an address literal or a configured display name (case
// insensitive) to a load address.
func (s *Shell) resolve(arg string) (protocol.Address, error) {
	if addr, err := protocol.ParseAddress(arg); err == nil {
		return addr, nil
	}
	for _, load := range s.ctl.Loads() {
		if strings.EqualFold(load.Name, arg) {
			return load.Address, nil
		}
	}
	return "", fmt.Errorf("no such load: %s", arg)
}

func (s *Shell) cmdLoads() {
	loads := s.ctl.Loads()
	if len(loads) == 0 {
		fmt.Fprintln(s.out(), "No loads configured")
		return
	}

	fmt.Fprintf(s.out(), "%-6s %-7s %-20s %s\n", "ADDR", "KIND", "NAME", "LEVEL")
	for _, load := range loads {
		level := "-"
		if state, ok := s.ctl.LastKnown(load.Address); ok {
			level = fmt.Sprintf("%d%% (raw %d)", state.Level, state.Raw)
		}
		fmt.Fprintf(s.out(), "%-6s %-7s %-20s %s\n", load.Address, load.Kind, load.Name, level)
	}
}

func (s *Shell) cmdOn(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out(), "Usage: on <load>")
		return
	}
	addr, err := s.resolve(args[0])
	if err != nil {
		fmt.Fprintln(s.out(), err)
		return
	}
	if err := s.ctl.On(addr); err != nil {
		fmt.Fprintf(s.out(), "on %s: %v\n", addr, err)
	}
}

func (s *Shell) cmdOff(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out(), "Usage: off <load>")
		return
	}
	addr, err := s.resolve(args[0])
	if err != nil {
		fmt.Fprintln(s.out(), err)
		return
	}
	if err := s.ctl.Off(addr); err != nil {
		fmt.Fprintf(s.out(), "off %s: %v\n", addr, err)
	}
}

func (s *Shell) cmdDim(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out(), "Usage: dim <load> <percent>")
		return
	}
	addr, err := s.resolve(args[0])
	if err != nil {
		fmt.Fprintln(s.out(), err)
		return
	}
	percent, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.out(), "Bad percentage: %s\n", args[1])
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	state, ok, err := s.ctl.SetDimmer(ctx, addr, percent)
	s.printOutcome(addr, state, ok, err)
}

func (s *Shell) cmdQuery(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out(), "Usage: query <load>")
		return
	}
	addr, err := s.resolve(args[0])
	if err != nil {
		fmt.Fprintln(s.out(), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	state, ok, err := s.ctl.Query(ctx, addr)
	s.printOutcome(addr, state, ok, err)
}

func (s *Shell) printOutcome(addr protocol.Address, state controller.LoadState, ok bool, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(s.out(), "%s: command timed out in the queue\n", addr)
	case err != nil:
		fmt.Fprintf(s.out(), "%s: %v\n", addr, err)
	case !ok:
		fmt.Fprintf(s.out(), "%s: no reply (module unpowered?)\n", addr)
	default:
		fmt.Fprintf(s.out(), "%s = %d%% (raw %d)\n", addr, state.Level, state.Raw)
	}
}

// cmdWatch toggles a status subscription that prints every confirmed
// update, including background polling results.
func (s *Shell) cmdWatch() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
		fmt.Fprintln(s.out(), "Watch off")
		return
	}

	s.unwatch = s.ctl.SubscribeStatus(func(state controller.LoadState) {
		name := state.Name
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(s.out(), "[%s] %s (%s) = %d%% (raw %d)\n",
			time.Now().Format("15:04:05"), state.Address, name, state.Level, state.Raw)
	})
	fmt.Fprintln(s.out(), "Watch on (type 'watch' again to stop)")
}

func (s *Shell) cmdPoll(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(s.out(), "Polling is %s. Usage: poll on|off\n", onOff(s.ctl.Polling()))
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.ctl.StartPolling()
		fmt.Fprintln(s.out(), "Polling started")
	case "off":
		s.ctl.StopPolling()
		fmt.Fprintln(s.out(), "Polling stopped")
	default:
		fmt.Fprintln(s.out(), "Usage: poll on|off")
	}
}

func (s *Shell) cmdStatus() {
	state := "CLOSED"
	if s.ctl.IsConnected() {
		state = "OPEN"
	}
	fmt.Fprintf(s.out(), "Connection: %s\n", state)
	fmt.Fprintf(s.out(), "Queue depth: %d\n", s.ctl.QueueDepth())
	fmt.Fprintf(s.out(), "Polling: %s\n", onOff(s.ctl.Polling()))
	fmt.Fprintf(s.out(), "Loads: %d\n", len(s.ctl.Loads()))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
