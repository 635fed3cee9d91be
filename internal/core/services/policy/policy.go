// Package policy hosts the pluggable protection and acknowledgment
// strategies consulted while a frame exchange is being assembled. A
// strategy returns a replacement method when the candidate frame
// invalidates the one previously selected, and nothing otherwise.
package policy

import (
	"time"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
	"github.com/lcalzada-xor/hemac/internal/core/ports"
	"github.com/lcalzada-xor/hemac/internal/core/services/agg"
)

// TxParams is the running state of the exchange being assembled: the data
// vector, the aggregation tracker and the currently selected methods.
type TxParams struct {
	Vector     *domain.TxVector
	Tracker    *agg.Tracker
	Protection *domain.ProtectionMethod
	Ack        *domain.AckMethod
	TxopLimit  time.Duration
}

// ProtectionPolicy decides how a candidate frame is protected. The ok
// result is false when the previously selected method remains valid.
type ProtectionPolicy interface {
	TryAddMpdu(m *domain.Mpdu, p *TxParams) (*domain.ProtectionMethod, bool)
	TryAggregateMsdu(m *domain.Msdu, p *TxParams) (*domain.ProtectionMethod, bool)
}

// AckPolicy decides how a candidate frame is acknowledged, with the same
// replace-or-keep contract as ProtectionPolicy.
type AckPolicy interface {
	TryAddMpdu(m *domain.Mpdu, p *TxParams) (*domain.AckMethod, bool)
	TryAggregateMsdu(m *domain.Msdu, p *TxParams) (*domain.AckMethod, bool)
}

// DefaultAckPolicy acknowledges group-addressed traffic with nothing and
// unicast traffic with a normal ack whose response parameters come from the
// rate controller.
type DefaultAckPolicy struct {
	Rate ports.RateControl
}

var _ AckPolicy = (*DefaultAckPolicy)(nil)

func (d *DefaultAckPolicy) TryAddMpdu(m *domain.Mpdu, p *TxParams) (*domain.AckMethod, bool) {
	if m.Header.GroupAddressed() {
		if p.Ack != nil && p.Ack.Variant == domain.AckNone {
			p.Ack.SetQosAckPolicy(m.Header.Key(), domain.QosNoAck)
			return nil, false
		}
		method := &domain.AckMethod{Variant: domain.AckNone}
		method.SetAckTime(0)
		method.SetQosAckPolicy(m.Header.Key(), domain.QosNoAck)
		return method, true
	}

	if p.Ack != nil && p.Ack.Variant == domain.AckNormal {
		p.Ack.SetQosAckPolicy(m.Header.Key(), domain.QosNormalAck)
		return nil, false
	}
	method := &domain.AckMethod{
		Variant:        domain.AckNormal,
		ResponseVector: d.Rate.AckTxVector(m.Header.Addr1, ports.ModeNormalAck),
	}
	method.SetQosAckPolicy(m.Header.Key(), domain.QosNormalAck)
	return method, true
}

func (d *DefaultAckPolicy) TryAggregateMsdu(m *domain.Msdu, p *TxParams) (*domain.AckMethod, bool) {
	// Growing an A-MSDU never changes how the carrying MPDU is acknowledged.
	return nil, false
}

// DefaultProtectionPolicy protects unicast PSDUs above the RTS threshold
// with an RTS/CTS exchange and everything else with nothing.
type DefaultProtectionPolicy struct {
	Rate         ports.RateControl
	Phy          ports.Phy
	RtsThreshold int
}

var _ ProtectionPolicy = (*DefaultProtectionPolicy)(nil)

// rtsSize and ctsSize are the fixed control-frame sizes, FCS included.
const (
	rtsSize = 20
	ctsSize = 14
)

func (d *DefaultProtectionPolicy) methodFor(size int, group bool, receiver *domain.Mpdu, p *TxParams) (*domain.ProtectionMethod, bool) {
	want := domain.ProtectionNone
	if !group && size > d.RtsThreshold {
		want = domain.ProtectionRtsCts
	}
	if p.Protection != nil && p.Protection.Variant == want {
		return nil, false
	}
	method := &domain.ProtectionMethod{Variant: want}
	if want == domain.ProtectionRtsCts {
		method.RtsVector = d.Rate.DataTxVector(&receiver.Header)
		method.CtsVector = d.Rate.AckTxVector(receiver.Header.Addr1, ports.ModeNormalAck)
		method.Time = d.Phy.TxDuration(rtsSize, method.RtsVector) + domain.Sifs +
			d.Phy.TxDuration(ctsSize, method.CtsVector) + domain.Sifs
	}
	return method, true
}

func (d *DefaultProtectionPolicy) TryAddMpdu(m *domain.Mpdu, p *TxParams) (*domain.ProtectionMethod, bool) {
	return d.methodFor(p.Tracker.SizeIfAddMpdu(m), m.Header.GroupAddressed(), m, p)
}

func (d *DefaultProtectionPolicy) TryAggregateMsdu(m *domain.Msdu, p *TxParams) (*domain.ProtectionMethod, bool) {
	size, ok := p.Tracker.SizeIfAggregateMsdu(m)
	if !ok {
		return nil, false
	}
	rec, ok := p.Tracker.Record(m.Receiver)
	if !ok {
		return nil, false
	}
	mpdu := &domain.Mpdu{Header: rec.LastHeader}
	return d.methodFor(size, rec.LastHeader.GroupAddressed(), mpdu, p)
}
