// Package resample changes raster dimensions. Downscaling happens on
// truecolor buffers before a palette is derived. Upscaling happens after
// quantization, either by stretching the index grid or by resampling the
// colors and quantizing again against the same palette.
package resample

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

type Kernel int

const (
	Nearest Kernel = iota
	Bilinear
	Bicubic
	Lanczos
)

var kernelNames = []string{"nearest", "bilinear", "bicubic", "lanczos"}

func (k Kernel) String() string {
	if k < 0 || int(k) >= len(kernelNames) {
		return "Kernel(" + strconv.Itoa(int(k)) + ")"
	}
	return kernelNames[k]
}

func (k Kernel) filter() imaging.ResampleFilter {
	switch k {
	case Bilinear:
		return imaging.Linear
	case Bicubic:
		return imaging.CatmullRom
	case Lanczos:
		return imaging.Lanczos
	default:
		return imaging.NearestNeighbor
	}
}

// ParseKernel accepts kernel names case-insensitively.
func ParseKernel(s string) (Kernel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "nearestneighbor" {
		return Nearest, nil
	}
	for i, n := range kernelNames {
		if n == name {
			return Kernel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown kernel '%s', expected one of %s", s, strings.Join(kernelNames, ", "))
}

// Phase places a resize before or after quantization. It doesn't restrict
// the direction, so an Upscale step may shrink and a Downscale step may grow.
type Phase int

const (
	// Downscale runs on the truecolor input, before the palette is derived.
	Downscale Phase = iota
	// Upscale runs on the indexed result.
	Upscale
)

func (p Phase) String() string {
	switch p {
	case Downscale:
		return "downscale"
	case Upscale:
		return "upscale"
	}
	return "Phase(" + strconv.Itoa(int(p)) + ")"
}

// Target is the requested output size. It is one of Size, Factor or Longest.
// A target doesn't have to match the direction of its Phase: the phase only
// decides whether the resize runs before or after quantization.
type Target interface {
	// Dimensions returns the output size for a w x h input. Both are at
	// least 1.
	Dimensions(w, h int) (int, int)
	validate() error
}

// Size is an explicit output size. One side may be 0 to keep the aspect ratio.
type Size struct {
	Width, Height int
}

func (s Size) Dimensions(w, h int) (int, int) {
	switch {
	case s.Width == 0:
		return atLeastOne(float64(w) * float64(s.Height) / float64(h)), s.Height
	case s.Height == 0:
		return s.Width, atLeastOne(float64(h) * float64(s.Width) / float64(w))
	}
	return s.Width, s.Height
}

func (s Size) validate() error {
	if s.Width < 0 || s.Height < 0 || (s.Width == 0 && s.Height == 0) {
		return fmt.Errorf("invalid size %dx%d", s.Width, s.Height)
	}
	return nil
}

// Factor scales both sides.
type Factor float64

func (f Factor) Dimensions(w, h int) (int, int) {
	return atLeastOne(float64(w) * float64(f)), atLeastOne(float64(h) * float64(f))
}

func (f Factor) validate() error {
	if !(f > 0) || math.IsInf(float64(f), 0) {
		return fmt.Errorf("invalid scale factor %v", float64(f))
	}
	return nil
}

// Longest scales both sides so the longer one has the given length.
type Longest int

func (l Longest) Dimensions(w, h int) (int, int) {
	scale := float64(l) / float64(max(w, h))
	return atLeastOne(float64(w) * scale), atLeastOne(float64(h) * scale)
}

func (l Longest) validate() error {
	if l <= 0 {
		return fmt.Errorf("invalid longest side %d", int(l))
	}
	return nil
}

func atLeastOne(v float64) int {
	return max(int(math.Round(v)), 1)
}

// ParseTarget parses "WxH" (either side may be left out), "N%" or "max=N".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case strings.HasSuffix(s, "%"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad scale percentage '%s': %w", s, err)
		}
		t := Factor(f / 100)
		return t, t.validate()
	case strings.HasPrefix(s, "max="):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "max="))
		if err != nil {
			return nil, fmt.Errorf("bad longest side '%s': %w", s, err)
		}
		t := Longest(n)
		return t, t.validate()
	}

	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return nil, fmt.Errorf("'%s' is not a size like 640x480, 640x, x480, 50%% or max=800", s)
	}
	var t Size
	var err error
	if ws != "" {
		if t.Width, err = strconv.Atoi(ws); err != nil {
			return nil, fmt.Errorf("bad width in '%s': %w", s, err)
		}
	}
	if hs != "" {
		if t.Height, err = strconv.Atoi(hs); err != nil {
			return nil, fmt.Errorf("bad height in '%s': %w", s, err)
		}
	}
	return t, t.validate()
}

// ConfigConflictError reports a resample configuration that is rejected
// before any pixel is touched.
type ConfigConflictError struct {
	Phase  Phase
	Kernel Kernel
	Reason string
}

func (e *ConfigConflictError) Error() string {
	return fmt.Sprintf("%s with %s kernel: %s", e.Phase, e.Kernel, e.Reason)
}

// Spec describes one resize step.
type Spec struct {
	Phase  Phase
	Target Target
	Kernel Kernel

	// Redither resamples the colors of an indexed image and quantizes the
	// result again against the same palette. Upscale only.
	Redither bool
}

func (s Spec) conflict(reason string) error {
	return &ConfigConflictError{Phase: s.Phase, Kernel: s.Kernel, Reason: reason}
}

// Validate rejects combinations that can't be run.
func (s Spec) Validate() error {
	if s.Phase != Downscale && s.Phase != Upscale {
		return s.conflict("unknown phase")
	}
	if s.Kernel < Nearest || s.Kernel > Lanczos {
		return s.conflict("unknown kernel")
	}
	if s.Target == nil {
		return s.conflict("no target size")
	}
	if err := s.Target.validate(); err != nil {
		return s.conflict(err.Error())
	}
	if s.Phase == Upscale && s.Kernel == Lanczos {
		return s.conflict("lanczos is reserved for downscaling")
	}
	if s.Phase == Downscale && s.Redither {
		return s.conflict("re-dithering only applies to upscaling")
	}
	return nil
}
