// Package registry keeps the multi-user scheduler's candidate stations:
// one entry per associated station, listed per access category in insertion
// order and re-ranked by fairness credit after every scheduling round.
package registry

import (
	"net"
	"sort"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
)

// StationInfo is the persistent per-station state shared by every access
// category: block-ack agreements, the last reported buffer status and the
// last observed signal strength.
type StationInfo struct {
	Aid     domain.AID
	Address net.HardwareAddr

	baAgreements map[domain.TID]struct{}
	bufferBytes  int
	rssiKnown    bool
	rssiDbm      float64
}

// HasBaAgreement reports whether a block-ack agreement is established for
// the TID.
func (s *StationInfo) HasBaAgreement(tid domain.TID) bool {
	_, ok := s.baAgreements[tid]
	return ok
}

// BufferBytes is the queue size the station last reported, zero if unknown.
func (s *StationInfo) BufferBytes() int {
	return s.bufferBytes
}

// Rssi returns the last observation, if any.
func (s *StationInfo) Rssi() (float64, bool) {
	return s.rssiDbm, s.rssiKnown
}

// Candidate is one per-access-category list entry. The fairness credit is
// per category; the station state behind it is shared.
type Candidate struct {
	*StationInfo
	Credit float64
}

// CandidateRegistry owns the candidate lists. The engine runs on a single
// logical thread, so no locking is involved; ownership is exclusive to the
// in-flight exchange.
type CandidateRegistry struct {
	stations map[domain.AID]*StationInfo
	lists    map[domain.AccessCategory][]*Candidate
}

// New returns an empty registry.
func New() *CandidateRegistry {
	return &CandidateRegistry{
		stations: make(map[domain.AID]*StationInfo),
		lists:    make(map[domain.AccessCategory][]*Candidate),
	}
}

// Associate creates the station and appends it to every access-category
// list with a zero fairness credit. Re-associating an AID resets it.
func (r *CandidateRegistry) Associate(aid domain.AID, address net.HardwareAddr) {
	if _, ok := r.stations[aid]; ok {
		r.Deassociate(aid)
	}
	info := &StationInfo{
		Aid:          aid,
		Address:      address,
		baAgreements: make(map[domain.TID]struct{}),
	}
	r.stations[aid] = info
	for _, ac := range domain.AccessCategories() {
		r.lists[ac] = append(r.lists[ac], &Candidate{StationInfo: info})
	}
}

// Deassociate removes the station from every list.
func (r *CandidateRegistry) Deassociate(aid domain.AID) {
	delete(r.stations, aid)
	for ac, list := range r.lists {
		kept := list[:0]
		for _, c := range list {
			if c.Aid != aid {
				kept = append(kept, c)
			}
		}
		r.lists[ac] = kept
	}
}

// Station returns the shared entry for an AID.
func (r *CandidateRegistry) Station(aid domain.AID) (*StationInfo, bool) {
	s, ok := r.stations[aid]
	return s, ok
}

// Candidates returns the access-category list in its current order.
func (r *CandidateRegistry) Candidates(ac domain.AccessCategory) []*Candidate {
	return r.lists[ac]
}

// NotifyBaEstablished records a block-ack agreement for (aid, tid).
func (r *CandidateRegistry) NotifyBaEstablished(aid domain.AID, tid domain.TID) {
	if s, ok := r.stations[aid]; ok {
		s.baAgreements[tid] = struct{}{}
	}
}

// NotifyBaTornDown forgets the agreement.
func (r *CandidateRegistry) NotifyBaTornDown(aid domain.AID, tid domain.TID) {
	if s, ok := r.stations[aid]; ok {
		delete(s.baAgreements, tid)
	}
}

// SetBufferStatus records the queue size a station reported in a BSR.
func (r *CandidateRegistry) SetBufferStatus(aid domain.AID, bytes int) {
	if s, ok := r.stations[aid]; ok {
		s.bufferBytes = bytes
	}
}

// SetRssi records the most recent received signal strength of the station.
func (r *CandidateRegistry) SetRssi(aid domain.AID, dbm float64) {
	if s, ok := r.stations[aid]; ok {
		s.rssiKnown = true
		s.rssiDbm = dbm
	}
}

// CreditAll grants the given credit to every station listed under the
// access category, saturating at the cap.
func (r *CandidateRegistry) CreditAll(ac domain.AccessCategory, credit, cap float64) {
	for _, c := range r.lists[ac] {
		c.Credit += credit
		if c.Credit > cap {
			c.Credit = cap
		}
	}
}

// Debit charges the station's entry under the access category.
func (r *CandidateRegistry) Debit(ac domain.AccessCategory, aid domain.AID, amount float64) {
	for _, c := range r.lists[ac] {
		if c.Aid == aid {
			c.Credit -= amount
			return
		}
	}
}

// SortByCredit re-orders the access-category list by descending credit.
// The sort is stable so equal credits keep their insertion order.
func (r *CandidateRegistry) SortByCredit(ac domain.AccessCategory) {
	sort.SliceStable(r.lists[ac], func(i, j int) bool {
		return r.lists[ac][i].Credit > r.lists[ac][j].Credit
	})
}
