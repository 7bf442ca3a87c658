package fade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	out  = float32(0.7)
	over = float32(0.7)
	eps  = 1e-3
)

func calcAt(rng float32, hasFar bool) Result {
	return Calc(Input{Range2: rng * rng, Out: out, Over: over, HasFar: hasFar})
}

func TestCalc_NoFar(t *testing.T) {
	tests := []struct {
		name string
		rng  float32
		want float32
	}{
		{"centre", 0, 1},
		{"inside out", 0.5, 1},
		{"at out", out, 1},
		{"halfway to edge", 0.85, 0.5},
		{"edge", 1, 0},
		{"beyond edge clamps", 1.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := calcAt(tt.rng, false)
			assert.InDelta(t, tt.want, r.Fade, eps)
			assert.Equal(t, float32(1), r.ImposedFarFade)
			assert.False(t, r.Overlap)
		})
	}
}

func TestCalc_NoFar_ContinuousAtOut(t *testing.T) {
	at := calcAt(out, false).Fade
	above := calcAt(out+1e-4, false).Fade
	assert.InDelta(t, at, above, eps)
	assert.Less(t, above, at)
}

func TestCalc_WithFar_Bands(t *testing.T) {
	overmid := (over + 1) / 2

	assert.Equal(t, float32(0), calcAt(0.2, true).ImposedFarFade)
	assert.InDelta(t, 0, calcAt(over, true).ImposedFarFade, eps)
	assert.InDelta(t, 0.5, calcAt((over+overmid)/2, true).ImposedFarFade, eps)
	assert.InDelta(t, 1, calcAt(overmid, true).ImposedFarFade, eps)
	assert.Equal(t, float32(1), calcAt(0.95, true).ImposedFarFade)

	// Fully visible until the overlap midpoint, then fades to the edge.
	assert.InDelta(t, 1, calcAt(overmid, true).Fade, eps)
	assert.InDelta(t, 0, calcAt(1, true).Fade, eps)
}

func TestCalc_WithFar_ImposedMonotonicAndContinuous(t *testing.T) {
	prev := float32(-1)
	for i := 0; i <= 1000; i++ {
		rng := float32(i) / 1000
		cur := calcAt(rng, true).ImposedFarFade
		assert.GreaterOrEqual(t, cur, prev, "range %v", rng)
		if prev >= 0 {
			assert.InDelta(t, prev, cur, 0.01, "jump at range %v", rng)
		}
		prev = cur
	}
}

func TestCalc_SeedsFromActivatedNear(t *testing.T) {
	r := Calc(Input{
		Range2:             0.25,
		Out:                0.8,
		Over:               0.7,
		HasNear:            true,
		NearImposedFarFade: 0.4,
	})
	assert.InDelta(t, 0.4, r.Fade, eps)
	assert.True(t, r.Overlap)
	assert.Equal(t, float32(1), r.ImposedFarFade)
}

func TestCalc_NearFullyFadedNoOverlap(t *testing.T) {
	r := Calc(Input{Range2: 0.25, Out: out, Over: over, HasNear: true, NearImposedFarFade: 1})
	assert.Equal(t, float32(1), r.Fade)
	assert.False(t, r.Overlap)
}

func TestCalc_NoUpperClamp(t *testing.T) {
	r := Calc(Input{Range2: 0.25, Out: out, Over: over, HasNear: true, NearImposedFarFade: 1.5})
	assert.Equal(t, float32(1.5), r.Fade)
}
