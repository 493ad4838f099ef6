package pipeline

import "sync/atomic"

// Gate reports whether the source integration is enabled.
type Gate interface {
	Enabled() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

func (f GateFunc) Enabled() bool { return f() }

// StaticGate is a fixed gate.
type StaticGate bool

func (g StaticGate) Enabled() bool { return bool(g) }

// Toggle is a gate that can be flipped at runtime.
type Toggle struct {
	on atomic.Bool
}

// NewToggle creates a toggle in the given state.
func NewToggle(enabled bool) *Toggle {
	t := &Toggle{}
	t.on.Store(enabled)
	return t
}

func (t *Toggle) Enabled() bool { return t.on.Load() }

// Set changes the state and returns the previous one.
func (t *Toggle) Set(enabled bool) bool { return t.on.Swap(enabled) }

func (t *Toggle) Enable() { t.on.Store(true) }

func (t *Toggle) Disable() { t.on.Store(false) }
