// Package ports declares the boundaries between the frame-exchange engine
// and its external collaborators: the PHY, the rate controller, the MAC
// transmit queue and the discrete-event scheduler driving the whole engine.
package ports

import (
	"net"
	"time"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
)

// Psdu is the per-receiver payload handed to the PHY: the arena handles of
// the aggregated MPDUs, in transmission order.
type Psdu struct {
	Receiver net.HardwareAddr
	Mpdus    []domain.MpduHandle
}

// Phy is the physical-layer boundary. Transmit is fire and forget: the
// completion of a transmission is observed through the event scheduler, not
// through a return value.
type Phy interface {
	Transmit(vector *domain.TxVector, psdus map[domain.AID]*Psdu)
	// TxDuration computes the on-air time of size bytes under the vector.
	TxDuration(size int, vector *domain.TxVector) time.Duration
	// PreambleDuration is the preamble plus PHY header time of the vector.
	PreambleDuration(vector *domain.TxVector) time.Duration
	MaxPpduDuration() time.Duration
	TxPowerDbm() float64
}

// AckVectorMode selects the response class a receiver is asked for.
type AckVectorMode int

const (
	ModeNormalAck AckVectorMode = iota
	ModeBlockAck
)

// RateControl is the per-station rate/power manager boundary.
type RateControl interface {
	DataTxVector(header *domain.MacHeader) *domain.TxVector
	AckTxVector(receiver net.HardwareAddr, mode AckVectorMode) *domain.TxVector
	// MostRecentRssi returns the last observed received signal strength of
	// the station, in dBm, and whether any observation exists.
	MostRecentRssi(address net.HardwareAddr) (float64, bool)
	ReportDataFailed(mpdu *domain.Mpdu)
}

// TxQueue is the MAC transmit queue boundary for one access category.
type TxQueue interface {
	// PeekNext returns the next queued frame without removing it.
	PeekNext() (*domain.Mpdu, bool)
	// PeekFor returns the frame queued toward the receiver after skipping
	// the given number of earlier frames toward it.
	PeekFor(receiver net.HardwareAddr, skip int) (*domain.Mpdu, bool)
	// PeekMsduFor returns the next unframed payload queued toward the
	// receiver, a candidate for A-MSDU aggregation.
	PeekMsduFor(receiver net.HardwareAddr) (*domain.Msdu, bool)
	// Dequeue removes the frames carried by a transmitted PSDU.
	Dequeue(mpdus []*domain.Mpdu)
	IsEmpty() bool
	// QueuedBytes reports the bytes queued toward a receiver, zero if none.
	QueuedBytes(receiver net.HardwareAddr) int
}

// ChannelAccess is the backoff-manager boundary. The engine reports how an
// exchange ended so the manager can reset or grow the contention window and
// release the channel when nothing was transmitted.
type ChannelAccess interface {
	ReleaseChannel(ac domain.AccessCategory)
	// NotifySuccess resets the contention window of the category.
	NotifySuccess(ac domain.AccessCategory)
	// NotifyFailure grows the contention window and retry counters.
	NotifyFailure(ac domain.AccessCategory)
}

// EventHandle identifies a scheduled continuation so it can be canceled.
type EventHandle uint64

// EventScheduler is the discrete-event driver. Schedule stores the
// continuation and runs it at now+delay on the single engine thread;
// Cancel drops a pending continuation synchronously.
type EventScheduler interface {
	Schedule(delay time.Duration, fn func()) EventHandle
	Cancel(handle EventHandle)
	Now() time.Time
}
