package domain

import (
	"fmt"
	"net"
	"time"
)

// ProtectionVariant tags the protection method chosen for an exchange.
type ProtectionVariant int

const (
	ProtectionNone ProtectionVariant = iota
	ProtectionRtsCts
	ProtectionCtsToSelf
	ProtectionMuRtsCts
)

func (v ProtectionVariant) String() string {
	switch v {
	case ProtectionNone:
		return "NONE"
	case ProtectionRtsCts:
		return "RTS_CTS"
	case ProtectionCtsToSelf:
		return "CTS_TO_SELF"
	case ProtectionMuRtsCts:
		return "MU_RTS_CTS"
	}
	return fmt.Sprintf("ProtectionVariant(%d)", int(v))
}

// ProtectionMethod carries the time cost of the protection exchange and,
// for the RTS variants, the vectors of the control frames involved.
// Exactly one instance belongs to a frame-exchange attempt.
type ProtectionMethod struct {
	Variant ProtectionVariant
	Time    time.Duration

	// RTS/CTS and MU-RTS/CTS only.
	RtsVector *TxVector
	CtsVector *TxVector
}

// AckVariant tags the acknowledgment method chosen for an exchange.
type AckVariant int

const (
	AckNone AckVariant = iota
	AckNormal
	AckBlock
	AckBarThenBlock
	AckDlMuBarBaSequence
	AckDlMuTfMuBar
	AckDlMuAggregateTf
)

func (v AckVariant) String() string {
	switch v {
	case AckNone:
		return "NONE"
	case AckNormal:
		return "NORMAL_ACK"
	case AckBlock:
		return "BLOCK_ACK"
	case AckBarThenBlock:
		return "BAR_BLOCK_ACK"
	case AckDlMuBarBaSequence:
		return "DL_MU_BAR_BA_SEQUENCE"
	case AckDlMuTfMuBar:
		return "DL_MU_TF_MU_BAR"
	case AckDlMuAggregateTf:
		return "DL_MU_AGGREGATE_TF"
	}
	return fmt.Sprintf("AckVariant(%d)", int(v))
}

// StationAckInfo is the per-station leg of a DL-MU acknowledgment sequence.
type StationAckInfo struct {
	Receiver       net.HardwareAddr
	Tid            TID
	ResponseVector *TxVector
	BarVector      *TxVector
}

// AckMethod carries the acknowledgment scheme of an exchange: the variant,
// the per-(receiver, TID) QoS ack policy every MPDU placed in the PSDU must
// carry, and a lazily-computed acknowledgment time. Exactly one instance
// belongs to a frame-exchange attempt.
type AckMethod struct {
	Variant AckVariant

	// AckNormal / AckBlock / AckBarThenBlock.
	ResponseVector *TxVector
	BarVector      *TxVector

	// DL-MU sequences.
	StationsReplyingWithNormalAck []StationAckInfo
	StationsReplyingWithBlockAck  []StationAckInfo
	StationsSendBarTo             []StationAckInfo
	MuBarVector                   *TxVector

	qosPolicies map[RxTid]QosAckPolicy
	ackTime     time.Duration
	ackTimeSet  bool
}

// SetQosAckPolicy records the ack policy every MPDU addressed to the given
// (receiver, TID) pair must carry under this method.
func (m *AckMethod) SetQosAckPolicy(key RxTid, p QosAckPolicy) {
	if m.qosPolicies == nil {
		m.qosPolicies = make(map[RxTid]QosAckPolicy)
	}
	m.qosPolicies[key] = p
}

// QosAckPolicy returns the recorded policy for the pair.
func (m *AckMethod) QosAckPolicy(key RxTid) (QosAckPolicy, bool) {
	p, ok := m.qosPolicies[key]
	return p, ok
}

// AckTime returns the acknowledgment time if it has been computed.
// The sentinel ok=false means "unset": the policy framework computes the
// value lazily the first time the exchange budget needs it.
func (m *AckMethod) AckTime() (time.Duration, bool) {
	return m.ackTime, m.ackTimeSet
}

// SetAckTime stamps the computed acknowledgment time.
func (m *AckMethod) SetAckTime(d time.Duration) {
	m.ackTime = d
	m.ackTimeSet = true
}

// CompatibleWith reports whether an MPDU header satisfies the policy the
// method recorded for its (receiver, TID) pair. A header for a pair the
// method never stamped is accepted: the method does not constrain it.
func (m *AckMethod) CompatibleWith(h *MacHeader) bool {
	want, ok := m.qosPolicies[h.Key()]
	if !ok {
		return true
	}
	return h.AckPolicy == want
}
