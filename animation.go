package sfcpack

import (
	"errors"
	"fmt"
	"math"
)

const (
	endOfAnimationByte = 0xff

	maxFrameID     = 0xfc
	maxNFrames     = maxFrameID + 1
	maxNAnimations = 0xff
)

// Animation process function ids. MUST match the AnimationProcessFunctions
// jump table in the engine.
var loopingAnimationDelayIDs = map[string]byte{
	"none":        0,
	"frame":       2,
	"distance_x":  4,
	"distance_y":  6,
	"distance_xy": 8,
}

var nonLoopingAnimationDelayIDs = map[string]byte{
	"none":        0,
	"frame":       10,
	"distance_x":  12,
	"distance_y":  14,
	"distance_xy": 16,
}

func validDelayType(s string) bool {
	_, ok := loopingAnimationDelayIDs[s]
	return ok
}

// distance delays are stored in 1/16 pixel units
func animationDelayDistance(d float64) (byte, error) {
	if d < 0 || d >= 16 {
		return 0, fmt.Errorf("invalid animation frame delay (must be between 0 and 16): %v", d)
	}
	return byte(math.Round(d * 16)), nil
}

func convertAnimationDelay(delayType string, d float64) (byte, error) {
	switch delayType {
	case "none":
		return 0, nil
	case "frame":
		v := int(d)
		if v < 0 || v > 0xff {
			return 0, fmt.Errorf("invalid animation frame delay (must be between 0 and 255): %v", d)
		}
		return byte(v), nil
	case "distance_x", "distance_y", "distance_xy":
		return animationDelayDistance(d)
	}
	return 0, fmt.Errorf("unknown delay type %q", delayType)
}

// frameIDAllocator assigns frame ids in first use order as animations are
// encoded. Ids past maxFrameID only set the overflow flag so every frame is
// still visited before the error is reported.
type frameIDAllocator struct {
	frames   map[string][]byte
	ids      map[string]int
	exported [][]byte
	overflow bool
}

func newFrameIDAllocator(frames map[string][]byte) *frameIDAllocator {
	return &frameIDAllocator{
		frames: frames,
		ids:    make(map[string]int),
	}
}

func (a *frameIDAllocator) frameID(name string) (byte, error) {
	if id, ok := a.ids[name]; ok {
		return byte(id), nil
	}
	data, ok := a.frames[name]
	if !ok {
		return 0, fmt.Errorf("cannot find frame: %s", name)
	}
	id := len(a.ids)
	a.ids[name] = id
	if id > maxFrameID {
		a.overflow = true
		return 0, nil
	}
	a.exported = append(a.exported, data)
	return byte(id), nil
}

// exportedFrames returns the frame data table in id order.
func (a *frameIDAllocator) exportedFrames() [][]byte {
	return a.exported
}

// used reports whether a frame was referenced by any encoded animation.
func (a *frameIDAllocator) used(name string) bool {
	_, ok := a.ids[name]
	return ok
}

// buildAnimationData encodes one animation: a process function byte, then a
// (frame id, delay) pair per frame, then the end of animation byte. A single
// frame animation always uses the looping `none` process function.
func buildAnimationData(ani *MsAnimation, alloc *frameIDAllocator) ([]byte, error) {
	if ani.DelayType == "none" && len(ani.Frames) != 1 {
		return nil, errors.New("a 'none' delay type can only contain a single animation frame")
	}

	var processFunction byte
	switch {
	case len(ani.Frames) == 1:
		processFunction = loopingAnimationDelayIDs["none"]
	case ani.Loop:
		processFunction = loopingAnimationDelayIDs[ani.DelayType]
	default:
		processFunction = nonLoopingAnimationDelayIDs[ani.DelayType]
	}

	data := make([]byte, 0, 2+len(ani.Frames)*2)
	data = append(data, processFunction)

	if ani.FrameDelays != nil {
		for i, f := range ani.Frames {
			id, err := alloc.frameID(f)
			if err != nil {
				return nil, err
			}
			delay, err := convertAnimationDelay(ani.DelayType, ani.FrameDelays[i])
			if err != nil {
				return nil, err
			}
			data = append(data, id, delay)
		}
	} else {
		delay, err := convertAnimationDelay(ani.DelayType, ani.FixedDelay)
		if err != nil {
			return nil, err
		}
		for _, f := range ani.Frames {
			id, err := alloc.frameID(f)
			if err != nil {
				return nil, err
			}
			data = append(data, id, delay)
		}
	}

	data = append(data, endOfAnimationByte)
	return data, nil
}
