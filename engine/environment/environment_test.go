package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSampleLevel(t *testing.T) {
	var nilEnv *Environment
	_, ok := nilEnv.MaxSampleLevel()
	assert.False(t, ok)

	e := &Environment{MipLevelCount: 9}
	_, ok = e.MaxSampleLevel()
	assert.False(t, ok)

	e.LevelsReady = 3
	level, ok := e.MaxSampleLevel()
	assert.True(t, ok)
	assert.Equal(t, uint32(2), level)
}

func TestCloneCopiesHarmonics(t *testing.T) {
	sh := SH{}
	sh[0] = [3]float32{1, 2, 3}
	e := &Environment{MipLevelCount: 4, SH: &sh}

	c := e.Clone()
	c.SH[0][0] = 9
	c.LevelsReady = 2

	assert.Equal(t, float32(1), e.SH[0][0])
	assert.Zero(t, e.LevelsReady)
	assert.Nil(t, (*Environment)(nil).Clone())
}

func TestEvaluateConstantTerm(t *testing.T) {
	var sh SH
	sh[0] = [3]float32{1 / shY00, 2 / shY00, 0}

	for _, d := range [][3]float32{{1, 0, 0}, {0, -1, 0}, {0, 0, 1}} {
		v := sh.Evaluate(d)
		assert.InDelta(t, 1, v[0], 1e-5)
		assert.InDelta(t, 2, v[1], 1e-5)
		assert.InDelta(t, 0, v[2], 1e-5)
	}
}

func TestBasisLinearBand(t *testing.T) {
	b := Basis([3]float32{0, 0, 1})
	assert.InDelta(t, shY1, b[2], 1e-6)
	assert.Zero(t, b[1])
	assert.Zero(t, b[3])
	assert.InDelta(t, 2*shY20, b[6], 1e-6)
}
