package fade

import "math"

// Unset marks a fade value that has not been computed yet. No valid fade is negative.
const Unset float32 = -1

// Input describes one object's distance and its near/far neighbourhood.
// Range2 is the squared distance normalised by the object's visibility
// range, so 1 is the edge of visibility.
type Input struct {
	Range2 float32
	Out    float32 // streamer fade-out factor
	Over   float32 // streamer fade-overlap factor

	// HasNear is set only when the near counterpart is activated; an
	// inactive near object carries a stale imposed far fade.
	HasNear            bool
	NearImposedFarFade float32

	HasFar bool
}

// Result is the outcome of Calc.
type Result struct {
	Fade           float32
	ImposedFarFade float32
	// Overlap reports that the near counterpart is still partially visible.
	Overlap bool
}

// Calc computes the visibility blend for an object and the fade it imposes
// on its far counterpart.
//
// Without a far counterpart the object fades linearly from 1 at Out to 0 at
// the edge of visibility. With one, the object stays fully visible until the
// midpoint of [Over, 1] and the far counterpart's imposed fade ramps from 0 at
// Over to 1 at that midpoint. Both values are clamped at 0 but not at 1.
func Calc(in Input) Result {
	r := Result{Fade: 1}
	rng := float32(math.Sqrt(float64(in.Range2)))

	if in.HasNear {
		r.Fade = in.NearImposedFarFade
		if r.Fade < 1 {
			r.Overlap = true
		}
	}

	if !in.HasFar {
		if rng > in.Out {
			r.Fade = (1 - rng) / (1 - in.Out)
		}
		r.ImposedFarFade = 1
	} else {
		overmid := (in.Over + 1) / 2
		switch {
		case rng > overmid:
			r.Fade = (1 - rng) / (1 - overmid)
			r.ImposedFarFade = 1
		case rng > in.Over:
			r.ImposedFarFade = 1 - (overmid-rng)/(overmid-in.Over)
		default:
			r.ImposedFarFade = 0
		}
	}

	if r.Fade < 0 {
		r.Fade = 0
	}
	if r.ImposedFarFade < 0 {
		r.ImposedFarFade = 0
	}
	return r
}
