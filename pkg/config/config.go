// Package config loads and validates the YAML configuration file
// consumed by the command binaries.
//
// A minimal file names the serial device and the loads; everything else
// has a default:
//
//	device: /dev/ttyUSB0
//	baud_rate: 9600
//	polling_interval_ms: 2000
//	command_timeout_ms: 1000
//	debug: false
//	trace_file: /var/log/luxbus.ltrace
//	loads:
//	  - address: "01-1"
//	    kind: dimmer
//	    name: Kitchen
//	  - address: "05-1"
//	    kind: relay
//	    name: Porch
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luxbus-protocol/luxbus-go/pkg/controller"
	"github.com/luxbus-protocol/luxbus-go/pkg/poll"
	"github.com/luxbus-protocol/luxbus-go/pkg/protocol"
	"github.com/luxbus-protocol/luxbus-go/pkg/transport"
)

// Configuration errors.
var (
	// ErrNoDevice indicates a configuration without a serial device path.
	ErrNoDevice = errors.New("no serial device configured")

	// ErrNoLoads indicates a configuration without any loads.
	ErrNoLoads = errors.New("no loads configured")
)

// LoadEntry is one output in the configuration file.
type LoadEntry struct {
	Address string `yaml:"address"`
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
}

// File is the on-disk configuration.
type File struct {
	Device            string      `yaml:"device"`
	BaudRate          int         `yaml:"baud_rate"`
	PollingIntervalMS int         `yaml:"polling_interval_ms"`
	CommandTimeoutMS  int         `yaml:"command_timeout_ms"`
	Debug             bool        `yaml:"debug"`
	TraceFile         string      `yaml:"trace_file"`
	Loads             []LoadEntry `yaml:"loads"`
}

// Parse decodes a configuration from YAML bytes, applies defaults, and
// validates it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if f.BaudRate == 0 {
		f.BaudRate = transport.DefaultBaudRate
	}
	if f.PollingIntervalMS == 0 {
		f.PollingIntervalMS = int(poll.DefaultInterval / time.Millisecond)
	}
	if f.CommandTimeoutMS == 0 {
		f.CommandTimeoutMS = int(transport.DefaultCommandTimeout / time.Millisecond)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) validate() error {
	if f.Device == "" {
		return ErrNoDevice
	}
	if len(f.Loads) == 0 {
		return ErrNoLoads
	}
	if f.BaudRate < 0 || f.PollingIntervalMS < 0 || f.CommandTimeoutMS < 0 {
		return errors.New("negative timing values")
	}

	seen := make(map[protocol.Address]bool, len(f.Loads))
	for i, entry := range f.Loads {
		addr, err := protocol.ParseAddress(entry.Address)
		if err != nil {
			return fmt.Errorf("load %d: %w", i, err)
		}
		if seen[addr] {
			return fmt.Errorf("load %d: %w: %s", i, controller.ErrDuplicateLoad, addr)
		}
		seen[addr] = true

		if _, err := protocol.ParseKind(entry.Kind); err != nil {
			return fmt.Errorf("load %d (%s): %w", i, addr, err)
		}
	}
	return nil
}

// PollingInterval returns the polling interval as a duration.
func (f *File) PollingInterval() time.Duration {
	return time.Duration(f.PollingIntervalMS) * time.Millisecond
}

// CommandTimeout returns the per-command timeout as a duration.
func (f *File) CommandTimeout() time.Duration {
	return time.Duration(f.CommandTimeoutMS) * time.Millisecond
}

// Controller converts the file into a controller configuration. Trace
// logging and port overrides are runtime concerns left for the caller to
// fill in.
func (f *File) Controller() controller.Config {
	loads := make([]controller.Load, 0, len(f.Loads))
	for _, entry := range f.Loads {
		addr, _ := protocol.ParseAddress(entry.Address)
		kind, _ := protocol.ParseKind(entry.Kind)
		loads = append(loads, controller.Load{
			Address: addr,
			Kind:    kind,
			Name:    entry.Name,
		})
	}

	return controller.Config{
		Device:         f.Device,
		BaudRate:       f.BaudRate,
		CommandTimeout: f.CommandTimeout(),
		PollInterval:   f.PollingInterval(),
		Loads:          loads,
	}
}
