package sfcpack

import (
	"fmt"
	"strings"
)

// Content errors are collected and attributed to their owning frame,
// animation, frameset and spritesheet, so a single run reports every defect
// in a sheet. Structural errors (symbol drift, bank overflow, bad image) stay
// plain errors and abort immediately.

// TileError records the position of a tile that failed within a frame.
type TileError struct {
	X, Y int
	Size int
}

func (e TileError) String() string {
	return fmt.Sprintf("(%d, %d) size %d", e.X, e.Y, e.Size)
}

// FrameError is a content error owned by a single frame.
type FrameError struct {
	Frame string
	Msg   string
	Tiles []TileError
}

func (e *FrameError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %s: %s", e.Frame, e.Msg)
	for _, t := range e.Tiles {
		sb.WriteString("\n  ")
		sb.WriteString(t.String())
	}
	return sb.String()
}

// AnimationError is a content error owned by a single animation.
type AnimationError struct {
	Animation string
	Msg       string
}

func (e *AnimationError) Error() string {
	return fmt.Sprintf("animation %s: %s", e.Animation, e.Msg)
}

// FramesetError aggregates every content error found in one frameset.
type FramesetError struct {
	Frameset string
	Errs     []error
}

func (e *FramesetError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frameset %s:", e.Frameset)
	for _, err := range e.Errs {
		sb.WriteString("\n")
		sb.WriteString(indent(err.Error(), 2))
	}
	return sb.String()
}

func (e *FramesetError) Unwrap() []error {
	return e.Errs
}

// SpritesheetError aggregates every failing frameset of one spritesheet.
type SpritesheetError struct {
	Errs []error
}

func (e *SpritesheetError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d invalid frameset(s):", len(e.Errs))
	for _, err := range e.Errs {
		sb.WriteString("\n")
		sb.WriteString(indent(err.Error(), 2))
	}
	return sb.String()
}

func (e *SpritesheetError) Unwrap() []error {
	return e.Errs
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}

func frameErrorf(frame, format string, args ...interface{}) *FrameError {
	return &FrameError{Frame: frame, Msg: fmt.Sprintf(format, args...)}
}

func animationErrorf(animation, format string, args ...interface{}) *AnimationError {
	return &AnimationError{Animation: animation, Msg: fmt.Sprintf(format, args...)}
}
