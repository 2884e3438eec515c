package platform

import (
	"log/slog"
	"sort"

	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/util"
)

// segment is a run of lights shown as one row in the simulation.
type segment struct {
	firstLight int
	lastLight  int
	visible    bool
	reverse    bool
	values     []uint16
}

// parseDisplaySegments builds the configured segment groups. Lights a
// group does not cover are added as invisible segments so that every
// group spans all usable lights.
func parseDisplaySegments(displayConfig config.DisplayConfig, lightsTotal int) map[string][]*segment {
	segments := make(map[string][]*segment)

	for name, segarray := range displayConfig.LightSegments {
		for _, seg := range segarray {
			segments[name] = append(segments[name], newSegment(seg.FirstLight, seg.LastLight, seg.Reverse, true, lightsTotal))
		}
	}

	for name, segarray := range segments {
		all := make([]bool, lightsTotal)

		for _, seg := range segarray {
			for i := seg.firstLight; i <= seg.lastLight; i++ {
				if all[i] {
					slog.Warn("Overlapping light segments", "group", name, "light", i)
				}
				all[i] = true
			}
		}

		start := -1
		for index, elem := range all {
			if start == -1 && !elem {
				start = index
			} else if start != -1 && elem {
				segments[name] = append(segments[name], newSegment(start, index-1, false, false, lightsTotal))
				start = -1
			}
		}
		if start != -1 {
			segments[name] = append(segments[name], newSegment(start, len(all)-1, false, false, lightsTotal))
		}

		sort.Slice(segments[name], func(i, j int) bool { return segments[name][i].firstLight < segments[name][j].firstLight })
	}
	return segments
}

func newSegment(first, last int, reverse bool, visible bool, lightsTotal int) *segment {
	if first > last {
		slog.Debug("First light index is bigger than last light index - swapping", "first", first, "last", last)
		first, last = last, first
	}
	first = util.Clamp(first, 0, lightsTotal-1)
	last = util.Clamp(last, 0, lightsTotal-1)
	return &segment{
		firstLight: first,
		lastLight:  last,
		visible:    visible,
		reverse:    reverse,
		values:     make([]uint16, last-first+1),
	}
}

func (s *segment) length() int {
	return s.lastLight - s.firstLight + 1
}

// setValues copies the segment's part of frame, applying reversal if
// configured. frame itself is left untouched.
func (s *segment) setValues(frame []uint16) {
	if !s.visible || s.lastLight >= len(frame) {
		return
	}
	copy(s.values, frame[s.firstLight:s.lastLight+1])
	if s.reverse {
		for i, j := 0, len(s.values)-1; i < j; i, j = i+1, j-1 {
			s.values[i], s.values[j] = s.values[j], s.values[i]
		}
	}
}

// getValues returns the values for the segment if visible, otherwise nil.
func (s *segment) getValues() []uint16 {
	if s.visible {
		return s.values
	}
	return nil
}
