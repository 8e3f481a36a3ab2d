// Package bootcfg loads the board's boot-time task table.
package bootcfg

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"aegis/kernel"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrNoTasks            = errors.New("bootcfg: no tasks")
	ErrTaskSlot           = errors.New("bootcfg: bad task slot")
	ErrUnknownCapability  = errors.New("bootcfg: unknown capability")
	ErrNoIdle             = errors.New("bootcfg: idle slot is empty")
	ErrBadMemory          = errors.New("bootcfg: bad memory size")
	errPriorityOutOfRange = errors.New("bootcfg: priority out of range")
)

const (
	// PageSize is the granularity of task memory.
	PageSize = 4096
	// DefaultMemory is used when a task leaves memory unset.
	DefaultMemory = 16 * 1024
	// MaxMemory caps a single task region.
	MaxMemory = 1024 * 1024
)

// File is the top-level configuration document.
type File struct {
	// TickMs is the host duration of one kernel tick.
	TickMs   int    `yaml:"tick_ms"`
	LogLevel string `yaml:"log_level"`
	// SensorPeriod is the sensor device's interrupt period in ticks, 0 disables it.
	SensorPeriod uint64 `yaml:"sensor_period"`
	Tasks        []Task `yaml:"tasks"`
}

// Task configures one task slot.
type Task struct {
	Slot      int      `yaml:"slot"`
	Name      string   `yaml:"name"`
	Program   string   `yaml:"program"`
	Priority  uint8    `yaml:"priority"`
	Budget    uint64   `yaml:"budget"`
	Heartbeat uint64   `yaml:"heartbeat"`
	Memory    string   `yaml:"memory"`
	Caps      []string `yaml:"caps"`
}

// Load reads a configuration file. An empty path loads the built-in table.
func Load(path string) (*File, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootcfg: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Default returns the built-in task table.
func Default() (*File, error) {
	return Parse(defaultYAML)
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("bootcfg: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks slots, priorities, capability names and memory sizes.
func (f *File) Validate() error {
	if len(f.Tasks) == 0 {
		return ErrNoTasks
	}
	if _, err := kernel.ParseLogLevel(f.LogLevel); err != nil {
		return fmt.Errorf("bootcfg: %w", err)
	}
	var seen [kernel.NumTasks]bool
	for _, t := range f.Tasks {
		if t.Slot < 0 || t.Slot >= kernel.NumTasks {
			return fmt.Errorf("%w: %d", ErrTaskSlot, t.Slot)
		}
		if seen[t.Slot] {
			return fmt.Errorf("%w: %d used twice", ErrTaskSlot, t.Slot)
		}
		seen[t.Slot] = true
		if t.Program == "" {
			return fmt.Errorf("%w: slot %d has no program", ErrTaskSlot, t.Slot)
		}
		if t.Priority > kernel.MaxPriority {
			return fmt.Errorf("%w: slot %d priority %d", errPriorityOutOfRange, t.Slot, t.Priority)
		}
		if _, err := t.CapMask(); err != nil {
			return err
		}
		if _, err := t.MemoryBytes(); err != nil {
			return err
		}
	}
	if !seen[kernel.IdleTask] {
		return ErrNoIdle
	}
	return nil
}

// Level returns the configured kernel log level.
func (f *File) Level() kernel.LogLevel {
	l, _ := kernel.ParseLogLevel(f.LogLevel)
	return l
}

// CapMask folds the capability names into a mask.
func (t Task) CapMask() (kernel.CapMask, error) {
	var m kernel.CapMask
	for _, name := range t.Caps {
		c, ok := kernel.ParseCapName(strings.ToUpper(strings.TrimSpace(name)))
		if !ok {
			return 0, fmt.Errorf("%w: %q (slot %d)", ErrUnknownCapability, name, t.Slot)
		}
		m |= c
	}
	return m, nil
}

// MemoryBytes returns the task's memory size rounded up to whole pages.
func (t Task) MemoryBytes() (uint64, error) {
	if t.Memory == "" {
		return DefaultMemory, nil
	}
	b, err := bytesize.Parse(t.Memory)
	if err != nil {
		return 0, fmt.Errorf("%w: %q (slot %d): %v", ErrBadMemory, t.Memory, t.Slot, err)
	}
	n := uint64(b)
	if n == 0 || n > MaxMemory {
		return 0, fmt.Errorf("%w: %q (slot %d)", ErrBadMemory, t.Memory, t.Slot)
	}
	return (n + PageSize - 1) &^ (PageSize - 1), nil
}

// Task returns the configuration of a slot.
func (f *File) Task(slot int) (Task, bool) {
	for _, t := range f.Tasks {
		if t.Slot == slot {
			return t, true
		}
	}
	return Task{}, false
}
