package policy

import (
	"fmt"
	"time"

	"github.com/lcalzada-xor/hemac/internal/adapters/wire"
	"github.com/lcalzada-xor/hemac/internal/core/domain"
	"github.com/lcalzada-xor/hemac/internal/core/ports"
)

// Control-frame MAC framing: frame control, duration, RA, TA and FCS. The
// CTS/Ack shape omits the TA.
const (
	twoAddressFraming = 20
	oneAddressFraming = 14
)

// barFrameSize is the on-air size of a standalone Block Ack Request.
func barFrameSize(variant wire.BlockAckVariant) int {
	bar := wire.BlockAckRequest{Variant: variant}
	if variant == wire.MultiTidBlockAck {
		bar.Tids = []wire.TidInfo{{}}
	}
	return twoAddressFraming + bar.Size()
}

// baFrameSize is the on-air size of a standalone Block Ack response.
func baFrameSize(variant wire.BlockAckVariant) int {
	return twoAddressFraming + wire.NewBlockAck(variant, 0, 0).Size()
}

// ackFrameSize is the on-air size of a normal Ack.
const ackFrameSize = oneAddressFraming

// NormalAckFrameSize is the on-air size of a normal Ack, for callers sizing
// expected responses.
const NormalAckFrameSize = ackFrameSize

// BlockAckResponseSize is the on-air size of the baseline compressed
// block-ack response.
func BlockAckResponseSize() int {
	return baFrameSize(defaultBaVariant)
}

// ackVariantFor maps the negotiated wire layout used when sizing Block Ack
// responses of a method. Compressed is the HE baseline.
const defaultBaVariant = wire.CompressedBlockAck

// EnsureAckTime computes and stamps the acknowledgment time of the method
// if it is still unset, and returns it. The computation switches
// exhaustively over the variants: an unknown variant reaching this point is
// an implementation bug.
func EnsureAckTime(phy ports.Phy, m *domain.AckMethod) time.Duration {
	if d, ok := m.AckTime(); ok {
		return d
	}
	var d time.Duration
	switch m.Variant {
	case domain.AckNone:
		d = 0

	case domain.AckNormal:
		d = domain.Sifs + phy.TxDuration(ackFrameSize, m.ResponseVector)

	case domain.AckBlock:
		d = domain.Sifs + phy.TxDuration(baFrameSize(defaultBaVariant), m.ResponseVector)

	case domain.AckBarThenBlock:
		d = domain.Sifs + phy.TxDuration(barFrameSize(defaultBaVariant), m.BarVector) +
			domain.Sifs + phy.TxDuration(baFrameSize(defaultBaVariant), m.ResponseVector)

	case domain.AckDlMuBarBaSequence:
		for _, sta := range m.StationsReplyingWithNormalAck {
			d += domain.Sifs + phy.TxDuration(ackFrameSize, sta.ResponseVector)
		}
		for _, sta := range m.StationsReplyingWithBlockAck {
			d += domain.Sifs + phy.TxDuration(baFrameSize(defaultBaVariant), sta.ResponseVector)
		}
		for _, sta := range m.StationsSendBarTo {
			d += domain.Sifs + phy.TxDuration(barFrameSize(defaultBaVariant), sta.BarVector) +
				domain.Sifs + phy.TxDuration(baFrameSize(defaultBaVariant), sta.ResponseVector)
		}

	case domain.AckDlMuTfMuBar:
		// One MU-BAR trigger, then the block acks arrive together in a
		// TB PPDU: the slowest responder bounds the response time.
		d = domain.Sifs + phy.TxDuration(muBarFrameSize(m), m.MuBarVector) +
			domain.Sifs + slowestBlockAck(phy, m.StationsReplyingWithBlockAck)

	case domain.AckDlMuAggregateTf:
		// The trigger flies aggregated with the data, so only the TB PPDU
		// responses contribute.
		d = domain.Sifs + slowestBlockAck(phy, m.StationsReplyingWithBlockAck)

	default:
		panic(fmt.Sprintf("policy: acknowledgment variant %v reached the transmit path", m.Variant))
	}
	m.SetAckTime(d)
	return d
}

func muBarFrameSize(m *domain.AckMethod) int {
	trigger := wire.Trigger{Type: wire.TriggerMuBar}
	for range m.StationsReplyingWithBlockAck {
		trigger.Users = append(trigger.Users, wire.TriggerUserInfo{
			MuBar: &wire.BlockAckRequest{Variant: defaultBaVariant},
		})
	}
	return twoAddressFraming + trigger.Size()
}

func slowestBlockAck(phy ports.Phy, stations []domain.StationAckInfo) time.Duration {
	var max time.Duration
	for _, sta := range stations {
		if d := phy.TxDuration(baFrameSize(defaultBaVariant), sta.ResponseVector); d > max {
			max = d
		}
	}
	return max
}

// ProtectionTime computes the duration of a protection exchange; the RTS
// variants already carry it, computed when the method was built.
func ProtectionTime(m *domain.ProtectionMethod) time.Duration {
	if m == nil {
		return 0
	}
	switch m.Variant {
	case domain.ProtectionNone, domain.ProtectionRtsCts,
		domain.ProtectionCtsToSelf, domain.ProtectionMuRtsCts:
		return m.Time
	}
	panic(fmt.Sprintf("policy: protection variant %v reached the transmit path", m.Variant))
}
