package rawrecon

import (
	"errors"
	"fmt"

	"github.com/mrjoshuak/go-rawrecon/defect"
	"github.com/mrjoshuak/go-rawrecon/demosaic"
	"github.com/mrjoshuak/go-rawrecon/dualiso"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

// Job is one frame to process.
type Job struct {
	Plane    *raw.Plane
	CameraID uint32

	// Clip names the source clip; bad pixel maps are stored per clip. Empty
	// disables bad pixel correction.
	Clip string
}

// Report summarises what Process did to a frame.
type Report struct {
	FocusPixels int
	BadPixels   int
	Pattern     *defect.PatternOffsets

	// DualISO is set when the frame was fused. DualISOErr holds the reason
	// a frame was rendered as a single exposure while dual-ISO was enabled.
	DualISO    bool
	DualISOErr error

	Algorithm demosaic.Algorithm

	// MapErr reports a bad pixel map that could not be saved.
	MapErr error
}

// Process runs the full pipeline on job.Plane, which is modified in place:
// focus pixels, bad pixels, pattern noise, dual-ISO fusion when the frame is
// interlaced, then demosaic with the tuned algorithm. A frame that fails
// dual-ISO detection is rendered as a normal frame.
func (e *Engine) Process(job Job) (*raw.RGB16, *Report, error) {
	p := job.Plane
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	t := e.tuning
	alg, err := demosaic.ParseAlgorithm(t.GetAlgorithm())
	if err != nil {
		return nil, nil, err
	}
	rep := &Report{Algorithm: alg}

	interlaced := false
	if t.GetDualISO() {
		if _, err := dualiso.Analyze(p); err == nil {
			interlaced = true
		} else {
			rep.DualISOErr = err
		}
	}

	if t.GetFocusPixels() {
		rep.FocusPixels = e.FixFocusPixels(p, job.CameraID, interlaced)
	}
	if mode := t.GetBadPixels(); mode != "off" && job.Clip != "" {
		opts := defect.DetectOptions{
			Aggressive: mode == "aggressive",
			DarkNoise:  float32(t.GetDarkNoise()),
			DualISO:    interlaced,
		}
		rep.BadPixels, rep.MapErr = e.FixBadPixels(p, job.CameraID, job.Clip, opts)
	}
	if t.GetPatternNoise() {
		if interlaced {
			monitoring.Logf("rawrecon: pattern noise correction skipped on dual-ISO frame")
		} else {
			off := e.FixPatternNoise(p)
			rep.Pattern = &off
		}
	}

	if interlaced {
		err := e.DualISO(p, e.DualISOOptions())
		switch {
		case err == nil:
			rep.DualISO = true
		case isDetection(err):
			rep.DualISOErr = err
			monitoring.Logf("rawrecon: rendering as single exposure: %v", err)
		default:
			return nil, rep, err
		}
	}

	img, err := e.Reconstruct(p, alg, 0)
	if err != nil {
		return nil, rep, fmt.Errorf("rawrecon: %w", err)
	}
	return img, rep, nil
}

// isDetection reports whether err is a dual-ISO detection failure, after
// which the frame is still usable as a single exposure.
func isDetection(err error) bool {
	return errors.Is(err, dualiso.ErrNoInterlace) ||
		errors.Is(err, dualiso.ErrInconsistentInterlace) ||
		errors.Is(err, dualiso.ErrWhiteLevel) ||
		errors.Is(err, dualiso.ErrExposureMatch)
}
