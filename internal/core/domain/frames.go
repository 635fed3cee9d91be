// Package domain holds the MAC-layer data model shared by the scheduler,
// the policy framework and the frame-exchange engine.
package domain

import (
	"fmt"
	"net"
)

// TID is the QoS traffic identifier of a frame (0-7).
type TID uint8

// AID is the association identifier of a station. Values 0 and 2045 are
// reserved for random-access resource units in trigger frames; 4095 marks
// trigger-frame padding.
type AID uint16

const (
	AidUnassociated AID = 0
	AidAnyStation   AID = 2045
	AidPadding      AID = 4095
)

// IsRandomAccess reports whether the AID is one of the two sentinel values
// addressing random-access RUs rather than a single station.
func (a AID) IsRandomAccess() bool {
	return a == AidUnassociated || a == AidAnyStation
}

// AccessCategory is an EDCA access category.
type AccessCategory int

const (
	AcBE AccessCategory = iota
	AcBK
	AcVI
	AcVO
	acCount
)

func (ac AccessCategory) String() string {
	switch ac {
	case AcBE:
		return "AC_BE"
	case AcBK:
		return "AC_BK"
	case AcVI:
		return "AC_VI"
	case AcVO:
		return "AC_VO"
	}
	return fmt.Sprintf("AC(%d)", int(ac))
}

// AccessCategories lists every EDCA access category.
func AccessCategories() []AccessCategory {
	return []AccessCategory{AcBE, AcBK, AcVI, AcVO}
}

// TidToAccessCategory maps a traffic identifier onto its access category.
func TidToAccessCategory(tid TID) AccessCategory {
	switch tid {
	case 1, 2:
		return AcBK
	case 0, 3:
		return AcBE
	case 4, 5:
		return AcVI
	default:
		return AcVO
	}
}

// QosAckPolicy is the 2-bit ack-policy subfield of a QoS control field.
type QosAckPolicy uint8

const (
	QosNormalAck QosAckPolicy = iota
	QosNoAck
	QosNoExplicitAck
	QosBlockAck
)

func (p QosAckPolicy) String() string {
	switch p {
	case QosNormalAck:
		return "NORMAL_ACK"
	case QosNoAck:
		return "NO_ACK"
	case QosNoExplicitAck:
		return "NO_EXPLICIT_ACK"
	case QosBlockAck:
		return "BLOCK_ACK"
	}
	return fmt.Sprintf("QosAckPolicy(%d)", uint8(p))
}

// RxTid keys per-receiver, per-TID state. The receiver is the textual form
// of its MAC address so the struct stays comparable.
type RxTid struct {
	Receiver string
	Tid      TID
}

// MacHeader is the subset of a QoS data MAC header the engine tracks while
// assembling a PPDU.
type MacHeader struct {
	Addr1     net.HardwareAddr // receiver
	Addr2     net.HardwareAddr // transmitter
	Tid       TID
	SeqNo     uint16
	AckPolicy QosAckPolicy
	Retry     bool
	Fragment  bool
}

// GroupAddressed reports whether the receiver address is a group address.
func (h *MacHeader) GroupAddressed() bool {
	return len(h.Addr1) > 0 && h.Addr1[0]&0x01 != 0
}

// Key returns the (receiver, TID) key of the header.
func (h *MacHeader) Key() RxTid {
	return RxTid{Receiver: h.Addr1.String(), Tid: h.Tid}
}

// QoS data header (26 bytes with HT control) plus FCS, and the A-MPDU /
// A-MSDU subframe framing overheads.
const (
	MacHeaderSize       = 26
	FcsSize             = 4
	AmpduSubframeHeader = 4
	AmsduSubframeHeader = 14
)

// Mpdu is a single MAC frame owned by the frame arena. PayloadSize covers
// the frame body only; Size() adds header and FCS.
type Mpdu struct {
	Header      MacHeader
	PayloadSize int
	Override    *RateOverride
}

// Size returns the on-air MPDU size in bytes.
func (m *Mpdu) Size() int {
	return MacHeaderSize + m.PayloadSize + FcsSize
}

// Msdu is a higher-layer payload considered for A-MSDU aggregation onto an
// already-recorded MPDU of the same receiver and TID.
type Msdu struct {
	Receiver net.HardwareAddr
	Tid      TID
	Size     int
}

// MpduHandle references an arena-owned MPDU. The in-flight exchange holds
// the only mutable access; everything else keeps handles.
type MpduHandle int

// SequenceCounter issues the per-(receiver, TID) sequence numbers of fresh
// MPDUs. It persists across exchanges; fragments and retransmissions keep
// the number they already carry.
type SequenceCounter map[RxTid]uint16

// Next returns the next sequence number for the pair and advances it,
// wrapping at the 12-bit sequence space.
func (c SequenceCounter) Next(key RxTid) uint16 {
	n := c[key]
	c[key] = (n + 1) % 4096
	return n
}

// FrameArena owns every MPDU of the exchange in progress. It is cleared
// between TXOP attempts together with the aggregation tracker.
type FrameArena struct {
	frames []Mpdu
}

// Add takes ownership of the MPDU and returns its handle.
func (a *FrameArena) Add(m Mpdu) MpduHandle {
	a.frames = append(a.frames, m)
	return MpduHandle(len(a.frames) - 1)
}

// Get returns the MPDU for the handle. Handles are never shared across
// exchanges, so a stale handle is an implementation bug.
func (a *FrameArena) Get(h MpduHandle) *Mpdu {
	if int(h) < 0 || int(h) >= len(a.frames) {
		panic(fmt.Sprintf("domain: stale mpdu handle %d (arena holds %d)", h, len(a.frames)))
	}
	return &a.frames[int(h)]
}

// Len returns the number of arena-owned MPDUs.
func (a *FrameArena) Len() int {
	return len(a.frames)
}

// Clear drops every owned frame. Handles issued before the call are dead.
func (a *FrameArena) Clear() {
	a.frames = a.frames[:0]
}
