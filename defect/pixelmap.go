// Package defect finds and repairs sensor defects in raw Bayer planes: focus
// pixels listed in per-camera map files, hot and cold pixels found by
// comparing each sample with its same-colour neighbours, and fixed pattern
// noise along columns and rows.
//
// Pixel maps are loaded at most once per camera and resolution through a
// MapCache and are never modified by interpolation.
package defect

import (
	"errors"
	"fmt"
)

// Kind tells focus pixel maps from bad pixel maps.
type Kind uint8

const (
	Focus Kind = iota
	Bad
)

func (k Kind) String() string {
	switch k {
	case Focus:
		return "focus"
	case Bad:
		return "bad"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// State is the lifecycle position of a PixelMap.
//
//	NotLoaded -> Loaded | NotFound
//	NotFound  -> Detected | NoneFound   (bad pixel maps only)
//	any       -> Applied
type State uint8

const (
	NotLoaded State = iota
	Loaded
	NotFound
	Detected
	NoneFound
	Applied
)

var stateNames = [...]string{"not loaded", "loaded", "not found", "detected", "none found", "applied"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

var (
	ErrBadLine       = errors.New("defect: malformed map line")
	ErrNoMapDir      = errors.New("defect: no map directory configured")
	ErrUnknownFormat = errors.New("defect: unknown map file extension")
)

// SignatureError reports a map file recorded for another camera.
type SignatureError struct {
	Path      string
	Want, Got uint32
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("defect: %s: map is for camera %08x, want %08x", e.Path, e.Got, e.Want)
}

// Point is a sensor coordinate.
type Point struct {
	X, Y int
}

// Signature identifies the sensor readout a focus map applies to.
type Signature struct {
	CameraID      uint32
	Width, Height int
}

func (s Signature) String() string {
	return fmt.Sprintf("%08x_%dx%d", s.CameraID, s.Width, s.Height)
}

// PixelMap is a set of defective sensor coordinates. Points are only ever
// appended.
type PixelMap struct {
	Kind      Kind
	Signature Signature
	State     State
	Points    []Point

	seen map[Point]struct{}
}

// NewPixelMap returns an empty map in the NotLoaded state.
func NewPixelMap(kind Kind, sig Signature) *PixelMap {
	return &PixelMap{Kind: kind, Signature: sig}
}

// Add appends pts, skipping coordinates already present. It returns the
// number of points added.
func (m *PixelMap) Add(pts ...Point) int {
	if m.seen == nil {
		m.seen = make(map[Point]struct{}, len(m.Points)+len(pts))
		for _, p := range m.Points {
			m.seen[p] = struct{}{}
		}
	}
	n := 0
	for _, p := range pts {
		if _, ok := m.seen[p]; ok {
			continue
		}
		m.seen[p] = struct{}{}
		m.Points = append(m.Points, p)
		n++
	}
	return n
}

// Len returns the number of points.
func (m *PixelMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Points)
}

// Usable reports whether the map holds points that may be applied.
func (m *PixelMap) Usable() bool {
	if m == nil || len(m.Points) == 0 {
		return false
	}
	switch m.State {
	case Loaded, Detected, Applied:
		return true
	}
	return false
}
