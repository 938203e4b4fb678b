package engine

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLayer struct {
	name       string
	log        *[]string
	prepareErr error
}

func (l *recordingLayer) Prepare(float32) error {
	*l.log = append(*l.log, "prepare "+l.name)
	return l.prepareErr
}

func (l *recordingLayer) Draw(pass renderer.RenderPass) error {
	*l.log = append(*l.log, "draw "+l.name)
	return nil
}

func TestFrameOrdersLayers(t *testing.T) {
	r, backend := renderertest.NewRenderer()
	var log []string
	e := NewEngine(
		WithRenderer(r),
		WithLayer(2, &recordingLayer{name: "overlay", log: &log}),
		WithLayer(-1, &recordingLayer{name: "sky", log: &log, prepareErr: errors.New("not ready")}),
	).(*engine)

	e.frame(0)
	assert.Equal(t, []string{"prepare sky", "prepare overlay", "draw sky", "draw overlay"}, log)

	passes := backend.Passes()
	require.Len(t, passes, 1)
	assert.Equal(t, "frame", passes[0].Label)

	e.RemoveLayer(2)
	assert.Nil(t, e.Layer(2))
	assert.NotNil(t, e.Layer(-1))
}

func TestFrameAppliesResizeOnRenderGoroutine(t *testing.T) {
	r, _ := renderertest.NewRenderer()
	e := NewEngine(WithRenderer(r)).(*engine)

	var got [2]int
	e.SetResizeCallback(func(w, h int) { got = [2]int{w, h} })
	e.pendingSize = &[2]int{640, 480}

	e.frame(0)
	assert.Equal(t, [2]int{640, 480}, got)
	assert.Nil(t, e.pendingSize)
}

func TestQuitIsIdempotent(t *testing.T) {
	e := NewEngine()
	e.Quit()
	e.Quit()
	e.Run()
}
