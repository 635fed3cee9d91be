// Package txop orchestrates one TXOP attempt at a time: it consults the
// multi-user scheduler for a format, assembles the transmission under the
// protection and acknowledgment policies, hands it to the PHY and manages
// the response timers.
package txop

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/hemac/internal/adapters/wire"
	"github.com/lcalzada-xor/hemac/internal/config"
	"github.com/lcalzada-xor/hemac/internal/core/domain"
	"github.com/lcalzada-xor/hemac/internal/core/ports"
	"github.com/lcalzada-xor/hemac/internal/core/services/agg"
	"github.com/lcalzada-xor/hemac/internal/core/services/musched"
	"github.com/lcalzada-xor/hemac/internal/core/services/policy"
	"github.com/lcalzada-xor/hemac/internal/telemetry"
)

// State is the coarse position of the exchange engine.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

// Response timeout kinds, doubling as telemetry labels.
const (
	kindNormalAck   = "normal_ack"
	kindBlockAck    = "block_ack"
	kindTbBlockAcks = "tb_block_acks"
)

// pendingResponse is the armed-timer state of the attempt: which timeout is
// running and which responders still owe a frame, each with the transmitted
// MPDUs charged to it for retry accounting.
type pendingResponse struct {
	kind      string
	handle    ports.EventHandle
	awaiting  map[string][]*domain.Mpdu
	total     int
	responded int
}

// Deps are the collaborators of the exchange engine. Scheduler may be nil
// on links without multi-user capability.
type Deps struct {
	Config     *config.Config
	Phy        ports.Phy
	Rate       ports.RateControl
	Access     ports.ChannelAccess
	Events     ports.EventScheduler
	Queues     map[domain.AccessCategory]ports.TxQueue
	Scheduler  *musched.Scheduler
	Protection policy.ProtectionPolicy
	Ack        policy.AckPolicy
	Log        *slog.Logger
}

// Exchange is the per-link frame-exchange state machine. Exactly one
// attempt is in flight at any time; all state below belongs to it.
type Exchange struct {
	Deps

	seq     domain.SequenceCounter
	arena   domain.FrameArena
	tracker *agg.Tracker

	state     State
	ac        domain.AccessCategory
	attemptID uuid.UUID
	span      trace.Span
	pending   *pendingResponse
}

// New returns an idle exchange engine.
func New(d Deps) *Exchange {
	return &Exchange{
		Deps:    d,
		seq:     make(domain.SequenceCounter),
		tracker: agg.New(true),
	}
}

// State returns the engine state, for the driver and for tests.
func (e *Exchange) State() State {
	return e.state
}

// NotifyAccessGranted starts a TXOP attempt for the access category with
// the given time limit. It reports whether anything was transmitted; false
// means the opportunity was released with every frame still queued.
func (e *Exchange) NotifyAccessGranted(ac domain.AccessCategory, limit time.Duration) bool {
	if e.state != StateIdle {
		panic("txop: access granted while a response is pending")
	}
	e.ac = ac
	e.arena.Clear()
	e.tracker.Clear()
	e.attemptID = uuid.New()
	_, e.span = telemetry.Tracer().Start(context.Background(), "txop.attempt",
		trace.WithAttributes(
			attribute.String("attempt_id", e.attemptID.String()),
			attribute.String("ac", ac.String()),
		))

	queue := e.Queues[ac]
	if e.Scheduler != nil {
		plan := e.Scheduler.NotifyAccessGranted(&musched.Round{
			Ac:        ac,
			Queue:     queue,
			Arena:     &e.arena,
			Tracker:   e.tracker,
			Seq:       e.seq,
			Remaining: limit,
		})
		switch plan.Format {
		case musched.FormatNone:
			e.release("scheduler deferred")
			return false
		case musched.FormatDlMu:
			return e.transmitDlMu(queue, plan.DlMu)
		case musched.FormatUlMu:
			return e.transmitUlMu(plan.UlMu)
		}
		// FormatSu falls through to the base algorithm.
	}
	return e.attemptSingleUser(queue, limit)
}

// release gives the channel back without transmitting. Deferral, not
// failure: queued frames wait for the next opportunity.
func (e *Exchange) release(reason string) {
	e.Log.Debug("releasing channel", "attempt", e.attemptID, "ac", e.ac.String(), "reason", reason)
	e.Access.ReleaseChannel(e.ac)
	e.span.End()
	e.state = StateIdle
}

func (e *Exchange) attemptSingleUser(queue ports.TxQueue, limit time.Duration) bool {
	frame, ok := queue.PeekNext()
	if !ok {
		e.release("queue empty")
		return false
	}
	if !frame.Header.Retry && !frame.Header.Fragment {
		frame.Header.SeqNo = e.seq.Next(frame.Header.Key())
	}
	vector := e.Rate.DataTxVector(&frame.Header)
	frame.Override.Apply(vector, e.Config.AdaptiveOverride)

	params := &policy.TxParams{Vector: vector, Tracker: e.tracker, TxopLimit: limit}
	if m, changed := e.Protection.TryAddMpdu(frame, params); changed {
		params.Protection = m
	}
	if m, changed := e.Ack.TryAddMpdu(frame, params); changed {
		params.Ack = m
	}

	total := policy.ProtectionTime(params.Protection) +
		e.Phy.TxDuration(e.tracker.SizeIfAddMpdu(frame), vector) +
		policy.EnsureAckTime(e.Phy, params.Ack)
	if total > limit {
		e.release("exceeds remaining TXOP")
		return false
	}

	e.finalizeHeader(frame, params.Ack)
	e.tracker.AddMpdu(frame)
	handle := e.arena.Add(*frame)
	queue.Dequeue([]*domain.Mpdu{frame})
	e.Phy.Transmit(vector, map[domain.AID]*ports.Psdu{
		domain.AidUnassociated: {Receiver: frame.Header.Addr1, Mpdus: []domain.MpduHandle{handle}},
	})
	telemetry.ExchangesStarted.WithLabelValues(e.ac.String(), "SU").Inc()

	receiver := frame.Header.Addr1.String()
	charged := map[string][]*domain.Mpdu{receiver: {frame}}
	switch params.Ack.Variant {
	case domain.AckNone:
		e.complete(true, "")
	case domain.AckNormal:
		e.armTimer(kindNormalAck, policy.NormalAckFrameSize, params.Ack.ResponseVector, charged)
	case domain.AckBlock, domain.AckBarThenBlock:
		e.armTimer(kindBlockAck, policy.BlockAckResponseSize(), params.Ack.ResponseVector, charged)
	default:
		panic(fmt.Sprintf("txop: acknowledgment variant %v on the single-user path", params.Ack.Variant))
	}
	return true
}

// finalizeHeader stamps the QoS ack policy the method requires onto the
// MPDU and asserts the result. An incompatible header here is a policy bug.
func (e *Exchange) finalizeHeader(m *domain.Mpdu, ack *domain.AckMethod) {
	if p, ok := ack.QosAckPolicy(m.Header.Key()); ok {
		m.Header.AckPolicy = p
	}
	if !ack.CompatibleWith(&m.Header) {
		panic(fmt.Sprintf("txop: mpdu toward %s carries ack policy %v incompatible with method %v",
			m.Header.Addr1, m.Header.AckPolicy, ack.Variant))
	}
}

func (e *Exchange) transmitDlMu(queue ports.TxQueue, plan *musched.DlMuPlan) bool {
	// Stamp the queued originals too: a retransmission must carry the same
	// finalized ack policy.
	for _, f := range plan.Frames {
		e.finalizeHeader(f, plan.Ack)
	}
	for _, psdu := range plan.Psdus {
		for _, h := range psdu.Mpdus {
			e.finalizeHeader(e.arena.Get(h), plan.Ack)
		}
	}
	queue.Dequeue(plan.Frames)
	e.Phy.Transmit(plan.Vector, plan.Psdus)
	telemetry.ExchangesStarted.WithLabelValues(e.ac.String(), "DL_MU").Inc()

	charged := make(map[string][]*domain.Mpdu)
	for _, f := range plan.Frames {
		key := f.Header.Addr1.String()
		charged[key] = append(charged[key], f)
	}

	switch plan.Ack.Variant {
	case domain.AckDlMuBarBaSequence:
		// One timer spans the whole SIFS-spaced BAR/BA sequence.
		e.armSequenceTimer(kindBlockAck, plan.Ack, charged)
	case domain.AckDlMuTfMuBar:
		// The MU-BAR trigger is its own follow-up exchange, one SIFS after
		// the data PPDU.
		e.state = StateAwaitingResponse
		e.Events.Schedule(domain.Sifs, func() {
			e.transmitMuBar(plan, charged)
		})
	case domain.AckDlMuAggregateTf:
		e.armSequenceTimer(kindTbBlockAcks, plan.Ack, charged)
	default:
		panic(fmt.Sprintf("txop: acknowledgment variant %v on the DL-MU path", plan.Ack.Variant))
	}
	return true
}

// transmitMuBar builds and sends the follow-up MU-BAR trigger soliciting
// the block acks of a DL-MU transmission in one TB PPDU.
func (e *Exchange) transmitMuBar(plan *musched.DlMuPlan, charged map[string][]*domain.Mpdu) {
	trigger := &wire.Trigger{Type: wire.TriggerMuBar, UlBandwidth: plan.Vector.Bandwidth}
	for aid, psdu := range plan.Psdus {
		spec, ok := plan.Vector.UserSpecFor(aid)
		if !ok {
			panic(fmt.Sprintf("txop: psdu for aid %d without a user spec", aid))
		}
		first := e.arena.Get(psdu.Mpdus[0])
		trigger.Users = append(trigger.Users, wire.TriggerUserInfo{
			Aid: uint16(aid),
			RU:  spec.RU,
			Ss:  &wire.SsAllocation{StartingSs: 1, Count: 1},
			MuBar: &wire.BlockAckRequest{
				Variant:     wire.CompressedBlockAck,
				Tid:         uint8(first.Header.Tid),
				StartingSeq: first.Header.SeqNo,
			},
		})
	}
	broadcast := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	handle := e.arena.Add(domain.Mpdu{
		Header:      domain.MacHeader{Addr1: broadcast},
		PayloadSize: trigger.Size(),
	})
	vector := plan.Ack.MuBarVector
	if vector == nil {
		vector = &domain.TxVector{Bandwidth: plan.Vector.Bandwidth}
	}
	e.Phy.Transmit(vector, map[domain.AID]*ports.Psdu{
		domain.AidUnassociated: {Receiver: broadcast, Mpdus: []domain.MpduHandle{handle}},
	})
	telemetry.TriggerFramesBuilt.WithLabelValues(wire.TriggerMuBar.String()).Inc()
	e.state = StateIdle // armSequenceTimer re-enters AwaitingResponse
	e.armSequenceTimer(kindTbBlockAcks, plan.Ack, charged)
}

func (e *Exchange) transmitUlMu(plan *musched.UlMuPlan) bool {
	broadcast := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	handle := e.arena.Add(domain.Mpdu{
		Header:      domain.MacHeader{Addr1: broadcast},
		PayloadSize: plan.Trigger.Size(),
	})
	e.Phy.Transmit(plan.TriggerVector, map[domain.AID]*ports.Psdu{
		domain.AidUnassociated: {Receiver: broadcast, Mpdus: []domain.MpduHandle{handle}},
	})
	telemetry.ExchangesStarted.WithLabelValues(e.ac.String(), "UL_MU").Inc()

	awaiting := make(map[string][]*domain.Mpdu, len(plan.Solicited))
	for _, aid := range plan.Solicited {
		awaiting[aidKey(aid)] = nil
	}
	d := plan.Duration + domain.Sifs + domain.Slot + e.Phy.PreambleDuration(plan.ResponseVector)
	e.arm(kindTbBlockAcks, d, awaiting)
	return true
}

func aidKey(aid domain.AID) string {
	return fmt.Sprintf("aid-%d", uint16(aid))
}

// armTimer arms a response timer for a single expected frame:
// response time + SIFS + one slot + the responder's preamble.
func (e *Exchange) armTimer(kind string, respSize int, respVec *domain.TxVector, awaiting map[string][]*domain.Mpdu) {
	d := e.Phy.TxDuration(respSize, respVec) + domain.Sifs + domain.Slot + e.Phy.PreambleDuration(respVec)
	e.arm(kind, d, awaiting)
}

// armSequenceTimer arms one timer covering a multi-responder acknowledgment
// sequence, using the method's lazily-computed total time.
func (e *Exchange) armSequenceTimer(kind string, ack *domain.AckMethod, awaiting map[string][]*domain.Mpdu) {
	respVec := &domain.TxVector{}
	if len(ack.StationsReplyingWithBlockAck) > 0 {
		respVec = ack.StationsReplyingWithBlockAck[0].ResponseVector
	} else if len(ack.StationsReplyingWithNormalAck) > 0 {
		respVec = ack.StationsReplyingWithNormalAck[0].ResponseVector
	}
	d := policy.EnsureAckTime(e.Phy, ack) + domain.Slot + e.Phy.PreambleDuration(respVec)
	e.arm(kind, d, awaiting)
}

func (e *Exchange) arm(kind string, d time.Duration, awaiting map[string][]*domain.Mpdu) {
	if e.state == StateAwaitingResponse {
		panic("txop: response timer armed twice")
	}
	p := &pendingResponse{kind: kind, awaiting: awaiting, total: len(awaiting)}
	p.handle = e.Events.Schedule(d, func() {
		e.onTimeout(p)
	})
	e.pending = p
	e.state = StateAwaitingResponse
}

// NotifyAckReceived reports a normal ack observed from the receiver.
func (e *Exchange) NotifyAckReceived(from net.HardwareAddr) {
	e.satisfy(kindNormalAck, from.String())
}

// NotifyBlockAckReceived reports a block ack observed from the receiver,
// whether standalone or inside a TB PPDU.
func (e *Exchange) NotifyBlockAckReceived(from net.HardwareAddr, _ *wire.BlockAck) {
	if !e.satisfy(kindBlockAck, from.String()) {
		e.satisfy(kindTbBlockAcks, from.String())
	}
}

// NotifyTbPpduReceived reports a trigger-based PPDU from a solicited
// station.
func (e *Exchange) NotifyTbPpduReceived(aid domain.AID) {
	e.satisfy(kindTbBlockAcks, aidKey(aid))
}

// satisfy marks one expected responder as heard and, once every responder
// has answered, cancels the timer synchronously and completes the exchange.
func (e *Exchange) satisfy(kind, key string) bool {
	p := e.pending
	if p == nil || p.kind != kind {
		return false
	}
	if _, ok := p.awaiting[key]; !ok {
		return false
	}
	delete(p.awaiting, key)
	p.responded++
	if len(p.awaiting) == 0 {
		e.Events.Cancel(p.handle)
		e.complete(true, "")
	}
	return true
}

func (e *Exchange) onTimeout(p *pendingResponse) {
	if e.pending != p {
		return
	}
	telemetry.ResponseTimeouts.WithLabelValues(p.kind).Inc()
	e.Log.Debug("response timeout",
		"attempt", e.attemptID,
		"kind", p.kind,
		"responded", p.responded,
		"expected", p.total)

	// Every missing responder's frames go through retry accounting.
	for _, frames := range p.awaiting {
		for _, f := range frames {
			f.Header.Retry = true
			e.Rate.ReportDataFailed(f)
		}
	}

	if p.kind == kindTbBlockAcks && p.responded > 0 {
		// Partial TB response: the exchange counts as succeeded and the
		// contention window resets; only the silent stations retry.
		e.complete(true, "")
		return
	}
	e.complete(false, p.kind)
}

// complete closes the attempt: contention-window bookkeeping, telemetry,
// span end, back to idle.
func (e *Exchange) complete(success bool, reason string) {
	if success {
		e.Access.NotifySuccess(e.ac)
		telemetry.ExchangesSucceeded.WithLabelValues(e.ac.String()).Inc()
	} else {
		e.Access.NotifyFailure(e.ac)
		telemetry.ExchangesFailed.WithLabelValues(e.ac.String(), reason).Inc()
	}
	e.span.SetAttributes(attribute.Bool("success", success))
	e.span.End()
	e.pending = nil
	e.state = StateIdle
}
