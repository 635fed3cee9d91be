package ru

import "fmt"

// typesBySize lists RU size classes from smallest to largest. Partitioning
// walks it upward so the chosen class is the one serving the most stations.
var typesBySize = []Type{RU26, RU52, RU106, RU242, RU484, RU996}

// CountOfType returns how many RUs of the given type fit in the channel.
// Unknown (bandwidth, type) pairs yield zero.
func CountOfType(bw Bandwidth, rt Type) int {
	if bw == BW160 {
		if rt == RU2x996 {
			return 1
		}
		return 2 * CountOfType(BW80, rt)
	}
	return len(tonePlans[planKey{bw, rt}])
}

// SubcarrierGroup returns the tone ranges occupied by the RU of the given
// type at the given 1-based physical index. At 160 MHz the 80 MHz plan is
// reused: the lower half is shifted down by 512 tones, the upper half up by
// 512, the split point being the 80 MHz RU count of the type.
func SubcarrierGroup(bw Bandwidth, rt Type, physIndex int) ([]ToneRange, error) {
	if bw == BW160 {
		if rt == RU2x996 {
			if physIndex != 1 {
				return nil, fmt.Errorf("%w: %s index %d at %d MHz", ErrBadIndex, rt, physIndex, bw)
			}
			return shiftedWholeChannel(), nil
		}
		n := CountOfType(BW80, rt)
		if n == 0 {
			return nil, fmt.Errorf("%w: %s at %d MHz", ErrUnknownPlan, rt, bw)
		}
		shift := -toneShift160
		idx := physIndex
		if physIndex > n {
			shift = toneShift160
			idx = physIndex - n
		}
		group, err := SubcarrierGroup(BW80, rt, idx)
		if err != nil {
			return nil, err
		}
		out := make([]ToneRange, len(group))
		for i, r := range group {
			out[i] = ToneRange{r.Lo + shift, r.Hi + shift}
		}
		return out, nil
	}

	plan, ok := tonePlans[planKey{bw, rt}]
	if !ok {
		return nil, fmt.Errorf("%w: %s at %d MHz", ErrUnknownPlan, rt, bw)
	}
	if physIndex < 1 || physIndex > len(plan) {
		return nil, fmt.Errorf("%w: %s index %d at %d MHz", ErrBadIndex, rt, physIndex, bw)
	}
	// Copy so callers can never mutate the shared plan.
	out := make([]ToneRange, len(plan[physIndex-1]))
	copy(out, plan[physIndex-1])
	return out, nil
}

func shiftedWholeChannel() []ToneRange {
	base := tonePlans[planKey{BW80, RU996}][0]
	return []ToneRange{
		{base[0].Lo - toneShift160, base[0].Hi - toneShift160},
		{base[1].Lo - toneShift160, base[1].Hi - toneShift160},
		{base[0].Lo + toneShift160, base[0].Hi + toneShift160},
		{base[1].Lo + toneShift160, base[1].Hi + toneShift160},
	}
}

// RUsOfType enumerates every RU of the given type in index order. At
// 160 MHz the primary 80 MHz half comes first.
func RUsOfType(bw Bandwidth, rt Type) []RU {
	if bw == BW160 && rt == RU2x996 {
		return []RU{{Type: RU2x996, Index: 1, Primary80: true}}
	}
	var out []RU
	if bw == BW160 {
		n := CountOfType(BW80, rt)
		for i := 1; i <= n; i++ {
			out = append(out, RU{Type: rt, Index: i, Primary80: true})
		}
		for i := 1; i <= n; i++ {
			out = append(out, RU{Type: rt, Index: i, Primary80: false})
		}
		return out
	}
	for i := 1; i <= CountOfType(bw, rt); i++ {
		out = append(out, RU{Type: rt, Index: i, Primary80: true})
	}
	return out
}

// Central26ToneRUs returns the 26-tone RUs left unused by an equal-size
// partition in RUs of the given type: the per-segment central 26-tone units
// for 52/106-tone partitions, the channel-central one for 242/484-tone
// partitions on 80 MHz and above, and nothing otherwise.
func Central26ToneRUs(bw Bandwidth, rt Type) []RU {
	var indices []int
	switch rt {
	case RU52, RU106:
		if bw == BW160 {
			indices = central26Indices[BW80]
		} else {
			indices = central26Indices[bw]
		}
	case RU242, RU484:
		if bw >= BW80 {
			indices = []int{19}
		}
	}
	var out []RU
	for _, i := range indices {
		out = append(out, RU{Type: RU26, Index: i, Primary80: true})
	}
	if bw == BW160 {
		for _, i := range indices {
			out = append(out, RU{Type: RU26, Index: i, Primary80: false})
		}
	}
	return out
}

// DoesOverlap reports whether r shares any subcarrier with one of the given
// RUs. An RU spanning the whole 160 MHz channel overlaps everything; RUs in
// different 80 MHz halves never overlap.
func DoesOverlap(bw Bandwidth, r RU, others []RU) bool {
	for _, o := range others {
		if r.Type == RU2x996 || o.Type == RU2x996 {
			return true
		}
		if bw == BW160 && r.Primary80 != o.Primary80 {
			continue
		}
		a, err := SubcarrierGroup(bw, r.Type, r.PhysicalIndex(bw))
		if err != nil {
			continue
		}
		b, err := SubcarrierGroup(bw, o.Type, o.PhysicalIndex(bw))
		if err != nil {
			continue
		}
		for _, ra := range a {
			for _, rb := range b {
				if ra.Overlaps(rb) {
					return true
				}
			}
		}
	}
	return false
}

// FindOverlappingRU returns the first RU of the searched type, in the same
// 80 MHz half as the reference, that overlaps it.
func FindOverlappingRU(bw Bandwidth, ref RU, searched Type) (RU, error) {
	for _, cand := range RUsOfType(bw, searched) {
		if bw == BW160 && cand.Primary80 != ref.Primary80 {
			continue
		}
		if DoesOverlap(bw, cand, []RU{ref}) {
			return cand, nil
		}
	}
	return RU{}, fmt.Errorf("%w: %s overlapping %s at %d MHz", ErrNoOverlap, searched, ref, bw)
}

// EqualSizedRUsForStations picks the RU type of an equal-size partition for
// the requested number of stations: the smallest type whose channel count
// does not exceed the request, so as many stations as possible get an RU.
// It returns the chosen type, the number of stations actually assignable
// (never zero, never above the request) and how many left-over central
// 26-tone RUs the partition allows carving out.
func EqualSizedRUsForStations(bw Bandwidth, stations int) (Type, int, int) {
	if stations < 1 {
		stations = 1
	}
	for _, rt := range typesBySize {
		n := CountOfType(bw, rt)
		if n == 0 || n > stations {
			continue
		}
		return rt, n, len(Central26ToneRUs(bw, rt))
	}
	// Only reachable at 160 MHz with a single station: no per-half type has
	// a count of one, so the whole channel becomes a single RU.
	return RU2x996, 1, 0
}
