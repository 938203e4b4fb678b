package rendernode

import (
	"log/slog"
	"sort"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
)

// Lifecycle tracks the state and the named attachments of a node. Nodes embed it
// to share the state machine and attachment ownership.
type Lifecycle struct {
	label       string
	state       State
	attachments map[string]resource.Texture
	releasers   []func()

	// generation changes on Reset and Destroy, dropping commits recorded before.
	generation uint64
}

// NewLifecycle returns an unconfigured lifecycle.
//
// Parameters:
//   - label: the node label
//
// Returns:
//   - *Lifecycle: the lifecycle
func NewLifecycle(label string) *Lifecycle {
	return &Lifecycle{
		label:       label,
		attachments: make(map[string]resource.Texture),
	}
}

func (l *Lifecycle) Label() string {
	return l.label
}

func (l *Lifecycle) State() State {
	return l.state
}

func (l *Lifecycle) Done() bool {
	return l.state == StateDone
}

// Configured reports whether the node has been configured and not destroyed since.
func (l *Lifecycle) Configured() bool {
	return l.state != StateUnconfigured
}

// SetAttachment stores tex under name, releasing the attachment it replaces.
//
// Parameters:
//   - name: the attachment name
//   - tex: the texture, owned by the lifecycle from now on
func (l *Lifecycle) SetAttachment(name string, tex resource.Texture) {
	if prev, ok := l.attachments[name]; ok && prev != tex {
		prev.Release()
	}
	l.attachments[name] = tex
}

// Attachment returns the attachment stored under name, or nil if the node is not
// configured or has none.
//
// Parameters:
//   - name: the attachment name
//
// Returns:
//   - resource.Texture: the attachment or nil
func (l *Lifecycle) Attachment(name string) resource.Texture {
	if l.state == StateUnconfigured {
		return nil
	}
	return l.attachments[name]
}

// AttachmentNames returns the sorted names of all attachments.
func (l *Lifecycle) AttachmentNames() []string {
	names := make([]string, 0, len(l.attachments))
	for n := range l.attachments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// OnDestroy registers fn to run on Destroy, for resources other than attachments.
//
// Parameters:
//   - fn: the release function
func (l *Lifecycle) OnDestroy(fn func()) {
	l.releasers = append(l.releasers, fn)
}

// MarkConfigured moves an unconfigured node to StateConfigured. Other states are kept.
func (l *Lifecycle) MarkConfigured() {
	if l.state == StateUnconfigured {
		l.transition(StateConfigured)
	}
}

// BeginRun accepts a Run call, moving a configured node to StateRunning.
//
// Returns:
//   - error: ErrNotConfigured if the node is unconfigured
func (l *Lifecycle) BeginRun() error {
	switch l.state {
	case StateUnconfigured:
		return ErrNotConfigured
	case StateConfigured:
		l.transition(StateRunning)
	}
	return nil
}

// MarkDone moves the node to StateDone.
func (l *Lifecycle) MarkDone() {
	if l.state != StateDone {
		l.transition(StateDone)
	}
}

// Commit runs fn once the commands recorded on enc have been submitted. fn is
// dropped when enc is discarded, its submission fails, or the node is reset or
// destroyed before the submission.
//
// Parameters:
//   - enc: the encoder the unit of work was recorded on
//   - fn: the progress update
func (l *Lifecycle) Commit(enc renderer.CommandEncoder, fn func()) {
	gen := l.generation
	enc.OnSubmit(func() error {
		if l.generation == gen {
			fn()
		}
		return nil
	})
}

// Reset moves a configured node back to StateConfigured, for nodes whose work
// restarts after reallocation.
func (l *Lifecycle) Reset() {
	l.generation++
	if l.state != StateUnconfigured {
		l.transition(StateConfigured)
	}
}

// Destroy releases every attachment and registered resource and returns the node
// to StateUnconfigured. Idempotent.
func (l *Lifecycle) Destroy() {
	for name, tex := range l.attachments {
		tex.Release()
		delete(l.attachments, name)
	}
	for i := len(l.releasers) - 1; i >= 0; i-- {
		l.releasers[i]()
	}
	l.releasers = nil
	l.generation++
	if l.state != StateUnconfigured {
		l.transition(StateUnconfigured)
	}
}

func (l *Lifecycle) transition(to State) {
	common.Logger().Debug("node state", slog.String("node", l.label), slog.String("from", l.state.String()), slog.String("to", to.String()))
	l.state = to
}
