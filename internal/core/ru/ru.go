// Package ru implements the HE resource-unit catalog: the static tone-plan
// tables of 802.11ax and the geometric queries the multi-user scheduler and
// the trigger-frame codec run against them.
package ru

import (
	"errors"
	"fmt"
)

// Bandwidth is a channel width in MHz.
type Bandwidth int

const (
	BW20  Bandwidth = 20
	BW40  Bandwidth = 40
	BW80  Bandwidth = 80
	BW160 Bandwidth = 160
)

// Type identifies the size class of a resource unit.
type Type int

const (
	RU26 Type = iota
	RU52
	RU106
	RU242
	RU484
	RU996
	RU2x996
)

func (t Type) String() string {
	switch t {
	case RU26:
		return "RU_26_TONE"
	case RU52:
		return "RU_52_TONE"
	case RU106:
		return "RU_106_TONE"
	case RU242:
		return "RU_242_TONE"
	case RU484:
		return "RU_484_TONE"
	case RU996:
		return "RU_996_TONE"
	case RU2x996:
		return "RU_2x996_TONE"
	}
	return fmt.Sprintf("RU_TYPE(%d)", int(t))
}

// Tones returns the number of subcarriers occupied by an RU of this type.
func (t Type) Tones() int {
	switch t {
	case RU26:
		return 26
	case RU52:
		return 52
	case RU106:
		return 106
	case RU242:
		return 242
	case RU484:
		return 484
	case RU996:
		return 996
	case RU2x996:
		return 2 * 996
	}
	return 0
}

// RU identifies a single resource unit: its size class, its 1-based index
// within that class and, for 160 MHz operation, whether it sits in the
// primary 80 MHz half of the channel.
type RU struct {
	Type      Type
	Index     int
	Primary80 bool
}

func (r RU) String() string {
	half := "S"
	if r.Primary80 {
		half = "P"
	}
	return fmt.Sprintf("%s[%d/%s80]", r.Type, r.Index, half)
}

// ToneRange is an inclusive range of subcarrier indices. Zero is the DC
// subcarrier; negative indices sit below it.
type ToneRange struct {
	Lo int
	Hi int
}

// Overlaps reports whether two tone ranges share at least one subcarrier.
func (a ToneRange) Overlaps(b ToneRange) bool {
	return a.Lo <= b.Hi && b.Lo <= a.Hi
}

var (
	ErrUnknownPlan = errors.New("ru: no tone plan for bandwidth/type pair")
	ErrBadIndex    = errors.New("ru: physical index out of range")
	ErrNoOverlap   = errors.New("ru: no overlapping resource unit of searched type")
)

// PhysicalIndex maps the (index, primary80) pair onto the physical index
// used by SubcarrierGroup. Below 160 MHz the two are identical; at 160 MHz
// the secondary 80 MHz half occupies the upper index range.
func (r RU) PhysicalIndex(bw Bandwidth) int {
	if bw != BW160 || r.Primary80 || r.Type == RU2x996 {
		return r.Index
	}
	return r.Index + CountOfType(BW80, r.Type)
}
