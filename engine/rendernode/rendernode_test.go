package rendernode

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTexture(t *testing.T, label string) resource.Texture {
	t.Helper()
	b := renderertest.NewBackend()
	tex, err := b.CreateTexture(resource.TextureDescriptor{Label: label, Width: 1, Height: 1, Layers: 1, MipLevels: 1, Format: wgpu.TextureFormatRGBA16Float})
	require.NoError(t, err)
	return tex
}

func TestLifecycleStateMachine(t *testing.T) {
	l := NewLifecycle("node")
	assert.Equal(t, StateUnconfigured, l.State())
	assert.ErrorIs(t, l.BeginRun(), ErrNotConfigured)

	l.MarkConfigured()
	assert.Equal(t, StateConfigured, l.State())
	require.NoError(t, l.BeginRun())
	assert.Equal(t, StateRunning, l.State())

	l.MarkConfigured()
	assert.Equal(t, StateRunning, l.State(), "reconfigure keeps progress state")

	l.MarkDone()
	assert.True(t, l.Done())
	require.NoError(t, l.BeginRun())
	assert.Equal(t, StateDone, l.State())

	l.Reset()
	assert.Equal(t, StateConfigured, l.State())
}

func TestLifecycleReleasesReplacedAttachments(t *testing.T) {
	l := NewLifecycle("node")
	first := newTexture(t, "first")
	second := newTexture(t, "second")

	l.SetAttachment("out", first)
	assert.Nil(t, l.Attachment("out"), "unconfigured nodes expose no attachments")
	l.MarkConfigured()
	assert.Same(t, first, l.Attachment("out"))

	l.SetAttachment("out", first)
	assert.False(t, first.Released())

	l.SetAttachment("out", second)
	assert.True(t, first.Released())
	assert.Same(t, second, l.Attachment("out"))
	assert.Equal(t, []string{"out"}, l.AttachmentNames())
}

func TestLifecycleDestroyIsIdempotent(t *testing.T) {
	l := NewLifecycle("node")
	tex := newTexture(t, "out")
	released := 0
	l.SetAttachment("out", tex)
	l.OnDestroy(func() { released++ })
	l.MarkConfigured()

	l.Destroy()
	l.Destroy()
	assert.True(t, tex.Released())
	assert.Equal(t, 1, released)
	assert.Equal(t, StateUnconfigured, l.State())
	assert.Empty(t, l.AttachmentNames())
}

func TestProgress(t *testing.T) {
	for _, total := range []uint32{1, 2, 9} {
		p := NewProgress(total)
		ticks := 0
		for !p.Done() {
			assert.Equal(t, uint32(ticks), p.Next())
			require.True(t, p.Advance())
			ticks++
		}
		assert.Equal(t, int(total), ticks)
		assert.False(t, p.Advance())
		assert.Equal(t, total, p.Completed())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestLifecycleCommitRunsOnSubmit(t *testing.T) {
	b := renderertest.NewBackend()
	l := NewLifecycle("node")
	l.MarkConfigured()
	commits := 0
	commit := func() { commits++ }

	enc, err := b.BeginCommands("discarded")
	require.NoError(t, err)
	l.Commit(enc, commit)
	enc.Discard()
	assert.Zero(t, commits)

	enc, err = b.BeginCommands("failed")
	require.NoError(t, err)
	l.Commit(enc, commit)
	b.FinishErr = assert.AnError
	assert.ErrorIs(t, enc.Finish(), assert.AnError)
	b.FinishErr = nil
	assert.Zero(t, commits)

	enc, err = b.BeginCommands("reset")
	require.NoError(t, err)
	l.Commit(enc, commit)
	l.Reset()
	require.NoError(t, enc.Finish())
	assert.Zero(t, commits)

	enc, err = b.BeginCommands("submitted")
	require.NoError(t, err)
	l.Commit(enc, commit)
	assert.Zero(t, commits)
	require.NoError(t, enc.Finish())
	assert.Equal(t, 1, commits)
}
