// Package agg tracks the incremental size and sequence-number state of the
// PSDUs being assembled for the exchange in progress: one record per
// destination receiver, folded MPDU by MPDU.
package agg

import (
	"fmt"
	"net"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
)

// PsduInfo is the per-receiver assembly record: the last MAC header placed,
// the A-MSDU size of the most recent MPDU, the A-MPDU size so far (zero
// until a second MPDU is folded in) and the sequence numbers assigned per
// TID.
type PsduInfo struct {
	LastHeader domain.MacHeader
	AmsduSize  int
	AmpduSize  int
	SeqNumbers map[domain.TID]map[uint16]struct{}

	mpduCount    int
	lastMpduSize int
	amsduCount   int
}

// Tracker owns the per-receiver records of one frame-exchange attempt.
// A fresh attempt always starts from a cleared tracker.
type Tracker struct {
	records map[string]*PsduInfo

	// mandatoryAmpdu applies the single-MPDU A-MPDU framing of HE links.
	mandatoryAmpdu bool
}

// New returns an empty tracker. mandatoryAmpdu selects the framing of links
// on which even a lone MPDU travels inside an A-MPDU.
func New(mandatoryAmpdu bool) *Tracker {
	return &Tracker{
		records:        make(map[string]*PsduInfo),
		mandatoryAmpdu: mandatoryAmpdu,
	}
}

// Clear drops every record.
func (t *Tracker) Clear() {
	t.records = make(map[string]*PsduInfo)
}

// Record returns the assembly record for a receiver.
func (t *Tracker) Record(receiver net.HardwareAddr) (*PsduInfo, bool) {
	r, ok := t.records[receiver.String()]
	return r, ok
}

// Receivers returns how many PSDUs are being assembled.
func (t *Tracker) Receivers() int {
	return len(t.records)
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

func subframe(mpduSize int) int {
	return domain.AmpduSubframeHeader + mpduSize
}

// sizeAfterAdd computes the PSDU size toward the receiver once an MPDU of
// the given on-air size is appended. Every subframe but the last is padded
// to a 4-byte boundary; previous subframes are already padded, so padding
// the running total pads exactly the one trailing subframe.
func (t *Tracker) sizeAfterAdd(rec *PsduInfo, mpduSize int) int {
	if rec == nil {
		if t.mandatoryAmpdu {
			return subframe(mpduSize)
		}
		return mpduSize
	}
	current := rec.AmpduSize
	if rec.mpduCount == 1 {
		current = subframe(rec.lastMpduSize)
	}
	return pad4(current) + subframe(mpduSize)
}

// SizeIfAddMpdu returns the PSDU size toward the MPDU's receiver if the
// MPDU were added now. Pure query: the tracker is left untouched.
func (t *Tracker) SizeIfAddMpdu(m *domain.Mpdu) int {
	rec := t.records[m.Header.Addr1.String()]
	return t.sizeAfterAdd(rec, m.Size())
}

// AddMpdu starts a new record for the MPDU's receiver, or folds the
// previous content into an A-MPDU subframe and seeds the new MPDU as the
// current A-MSDU. The frame's sequence number is recorded for its TID.
func (t *Tracker) AddMpdu(m *domain.Mpdu) {
	key := m.Header.Addr1.String()
	rec := t.records[key]
	if rec == nil {
		rec = &PsduInfo{SeqNumbers: make(map[domain.TID]map[uint16]struct{})}
		if t.mandatoryAmpdu {
			rec.AmpduSize = subframe(m.Size())
		}
		t.records[key] = rec
	} else {
		rec.AmpduSize = t.sizeAfterAdd(rec, m.Size())
	}
	rec.mpduCount++
	rec.lastMpduSize = m.Size()
	rec.LastHeader = m.Header
	rec.AmsduSize = m.PayloadSize
	rec.amsduCount = 0
	t.recordSeqNo(rec, m)
}

func (t *Tracker) recordSeqNo(rec *PsduInfo, m *domain.Mpdu) {
	set := rec.SeqNumbers[m.Header.Tid]
	if set == nil {
		set = make(map[uint16]struct{})
		rec.SeqNumbers[m.Header.Tid] = set
	}
	if _, dup := set[m.Header.SeqNo]; dup && !m.Header.Retry {
		panic(fmt.Sprintf("agg: sequence %d assigned twice for %s tid %d",
			m.Header.SeqNo, m.Header.Addr1, m.Header.Tid))
	}
	set[m.Header.SeqNo] = struct{}{}
}

// amsduBodyAfter computes the MPDU body size once the MSDU joins the
// A-MSDU. Aggregating onto a bare MPDU first wraps the existing payload in
// a subframe of its own.
func amsduBodyAfter(rec *PsduInfo, msduSize int) int {
	current := rec.AmsduSize
	if rec.amsduCount == 0 {
		current = domain.AmsduSubframeHeader + current
	}
	return pad4(current) + domain.AmsduSubframeHeader + msduSize
}

// SizeIfAggregateMsdu returns the PSDU size toward the MSDU's receiver if
// it were aggregated now, and false when no MPDU record exists to host it
// or the TIDs disagree. Pure query.
func (t *Tracker) SizeIfAggregateMsdu(m *domain.Msdu) (int, bool) {
	rec := t.records[m.Receiver.String()]
	if rec == nil || rec.LastHeader.Tid != m.Tid {
		return 0, false
	}
	newLast := domain.MacHeaderSize + amsduBodyAfter(rec, m.Size) + domain.FcsSize
	if rec.mpduCount == 1 {
		if t.mandatoryAmpdu {
			return subframe(newLast), true
		}
		return newLast, true
	}
	// The trailing subframe is unpadded in the running total.
	return rec.AmpduSize - subframe(rec.lastMpduSize) + subframe(newLast), true
}

// AggregateMsdu grows the A-MSDU of the most recent MPDU recorded for the
// receiver. Calling it with no such record, or with a TID mismatch, is a
// caller bug, not a runtime condition.
func (t *Tracker) AggregateMsdu(m *domain.Msdu) {
	rec := t.records[m.Receiver.String()]
	if rec == nil {
		panic(fmt.Sprintf("agg: aggregating msdu for %s with no mpdu record", m.Receiver))
	}
	if rec.LastHeader.Tid != m.Tid {
		panic(fmt.Sprintf("agg: msdu tid %d does not match mpdu tid %d for %s",
			m.Tid, rec.LastHeader.Tid, m.Receiver))
	}
	newSize, ok := t.SizeIfAggregateMsdu(m)
	if !ok {
		panic(fmt.Sprintf("agg: aggregation size unavailable for %s", m.Receiver))
	}
	rec.AmsduSize = amsduBodyAfter(rec, m.Size)
	rec.amsduCount++
	rec.lastMpduSize = domain.MacHeaderSize + rec.AmsduSize + domain.FcsSize
	if rec.mpduCount > 1 || t.mandatoryAmpdu {
		rec.AmpduSize = newSize
	}
}

// SizeFor returns the current (A-)MPDU size toward the receiver. The
// A-MPDU subframe overhead is included exactly when more than one MPDU has
// been folded in or the link mandates A-MPDU framing; zero when no record
// exists.
func (t *Tracker) SizeFor(receiver net.HardwareAddr) int {
	rec := t.records[receiver.String()]
	if rec == nil {
		return 0
	}
	if rec.mpduCount > 1 || t.mandatoryAmpdu {
		return rec.AmpduSize
	}
	return rec.lastMpduSize
}
