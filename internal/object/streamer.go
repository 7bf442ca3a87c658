package object

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrObjectDestroyed is returned by operations on an object after destroy.
	ErrObjectDestroyed = errors.New("object destroyed")
	// ErrNotFound is returned when no live object has the requested name.
	ErrNotFound = errors.New("object does not exist")
	// ErrInvalidSphere is returned for a non-finite position or a negative
	// or non-finite radius.
	ErrInvalidSphere = errors.New("invalid sphere")
)

// NoIndex marks an object that is not tracked by the spatial index.
const NoIndex = -1

// Vec3 is a world-space position.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Sub(o Vec3) Vec3  { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Length2() float32 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// CheckSphere validates a bounding sphere before it reaches the streamer.
func CheckSphere(pos Vec3, radius float32) error {
	if !finite(pos.X) || !finite(pos.Y) || !finite(pos.Z) {
		return fmt.Errorf("%w: position (%v, %v, %v)", ErrInvalidSphere, pos.X, pos.Y, pos.Z)
	}
	if !finite(radius) || radius < 0 {
		return fmt.Errorf("%w: radius %v", ErrInvalidSphere, radius)
	}
	return nil
}

// Streamer is the spatial streaming subsystem the registry reports to.
// List assigns the object an index via SetIndex; Unlist resets it to NoIndex.
type Streamer interface {
	List(o *Object)
	Unlist(o *Object)
	ListAsActivated(o *Object)
	UnlistAsActivated(o *Object)
	UpdateSphere(index int, pos Vec3, radius float32)
	FadeOutFactor() float32
	FadeOverlapFactor() float32
}

// Default fade factors used when no streamer is attached.
const (
	DefaultFadeOutFactor     = 0.7
	DefaultFadeOverlapFactor = 0.7
)

type nopStreamer struct{}

func (nopStreamer) List(*Object)                    {}
func (nopStreamer) Unlist(*Object)                  {}
func (nopStreamer) ListAsActivated(*Object)         {}
func (nopStreamer) UnlistAsActivated(*Object)       {}
func (nopStreamer) UpdateSphere(int, Vec3, float32) {}
func (nopStreamer) FadeOutFactor() float32          { return DefaultFadeOutFactor }
func (nopStreamer) FadeOverlapFactor() float32      { return DefaultFadeOverlapFactor }
