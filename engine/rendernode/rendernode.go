// Package rendernode defines the node abstraction the IBL pipeline is built from.
// A node owns its output attachments, allocates them in Reconfigure, performs at
// most one tick of work per Run and records each pass of that tick through Render.
package rendernode

import (
	"errors"
	"strconv"

	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
)

// ErrNotConfigured is returned by Run on a node that has not been configured.
var ErrNotConfigured = errors.New("rendernode: node is not configured")

// State is the lifecycle state of a node.
type State int

const (
	// StateUnconfigured is the state before the first Reconfigure and after Destroy.
	StateUnconfigured State = iota

	// StateConfigured means the attachments are allocated but no Run was accepted.
	StateConfigured

	// StateRunning means at least one Run was accepted.
	StateRunning

	// StateDone is terminal for nodes with finite work.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Pass identifies the subresource a Render call draws into.
type Pass struct {
	Face         uint32
	Level        uint32
	Distribution shader.Distribution
}

// RunContext is handed to Run by the scheduler. Run fills in Pass before each
// Render call it makes.
type RunContext struct {
	// Frame is the scheduler's tick counter.
	Frame uint64

	// Environment is the scene-supplied environment for this tick, or nil.
	Environment *environment.Source

	Pass Pass
}

// Node is one step of the render graph.
type Node interface {
	// Label returns the debug label of the node.
	//
	// Returns:
	//   - string: the label
	Label() string

	// State returns the current lifecycle state.
	//
	// Returns:
	//   - State: the state
	State() State

	// Done reports whether the node has finished its finite work.
	//
	// Returns:
	//   - bool: true once the node reached StateDone
	Done() bool

	// Reconfigure (re)allocates the node's attachments on dev. Safe to call repeatedly;
	// attachments that are replaced are released.
	//
	// Parameters:
	//   - dev: the device to allocate on
	//
	// Returns:
	//   - error: an error if allocation fails, in which case the node stays in its previous state
	Reconfigure(dev renderer.Device) error

	// Run performs at most one tick of work, recording onto enc.
	//
	// Parameters:
	//   - enc: the tick's command encoder
	//   - ctx: the tick context
	//
	// Returns:
	//   - error: ErrNotConfigured, or the error that aborted the tick
	Run(enc renderer.CommandEncoder, ctx RunContext) error

	// Render records the draw for ctx.Pass into pass.
	//
	// Parameters:
	//   - pass: the open render pass
	//   - ctx: the tick context with Pass set
	//
	// Returns:
	//   - error: an error if the draw cannot be recorded
	Render(pass renderer.RenderPass, ctx RunContext) error

	// Destroy releases every attachment. Idempotent and valid from any state.
	Destroy()
}
