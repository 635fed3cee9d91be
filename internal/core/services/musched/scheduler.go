// Package musched decides the transmission format of a granted TXOP —
// single-user, downlink-MU or uplink-MU — and builds either a per-station
// PSDU map or a trigger frame soliciting uplink data, partitioning the
// channel into resource units along the way.
package musched

import (
	"log/slog"
	"math"
	"net"
	"sort"
	"time"

	"github.com/lcalzada-xor/hemac/internal/adapters/wire"
	"github.com/lcalzada-xor/hemac/internal/config"
	"github.com/lcalzada-xor/hemac/internal/core/domain"
	"github.com/lcalzada-xor/hemac/internal/core/ports"
	"github.com/lcalzada-xor/hemac/internal/core/ru"
	"github.com/lcalzada-xor/hemac/internal/core/services/agg"
	"github.com/lcalzada-xor/hemac/internal/core/services/policy"
	"github.com/lcalzada-xor/hemac/internal/core/services/registry"
	"github.com/lcalzada-xor/hemac/internal/telemetry"
)

// TxFormat is the scheduler's verdict for one channel-access grant.
type TxFormat int

const (
	// FormatNone releases the opportunity without transmitting.
	FormatNone TxFormat = iota
	// FormatSu hands the grant back to the single-user exchange path.
	FormatSu
	FormatDlMu
	FormatUlMu
)

func (f TxFormat) String() string {
	switch f {
	case FormatNone:
		return "NONE"
	case FormatSu:
		return "SU"
	case FormatDlMu:
		return "DL_MU"
	case FormatUlMu:
		return "UL_MU"
	}
	return "TxFormat(?)"
}

// DlMuPlan is a prepared downlink multi-user transmission: the finalized
// vector, one PSDU per addressed station and the acknowledgment sequence
// covering them.
type DlMuPlan struct {
	Vector   *domain.TxVector
	Psdus    map[domain.AID]*ports.Psdu
	Ack      *domain.AckMethod
	Frames   []*domain.Mpdu
	Duration time.Duration
}

// UlMuPlan is a prepared uplink solicitation: the trigger frame, the vector
// it is transmitted under and the vector the trigger-based responses are
// expected to use.
type UlMuPlan struct {
	Trigger        *wire.Trigger
	TriggerVector  *domain.TxVector
	ResponseVector *domain.TxVector
	Solicited      []domain.AID
	Duration       time.Duration
}

// Plan is the outcome of one scheduling round. Exactly one of DlMu and UlMu
// is set, matching the format.
type Plan struct {
	Format TxFormat
	DlMu   *DlMuPlan
	UlMu   *UlMuPlan
}

// Round carries the per-grant state the scheduler works on: the granted
// access category, its queue, the exchange-owned arena and tracker, the
// engine's sequence counter and the remaining TXOP budget.
type Round struct {
	Ac        domain.AccessCategory
	Queue     ports.TxQueue
	Arena     *domain.FrameArena
	Tracker   *agg.Tracker
	Seq       domain.SequenceCounter
	Remaining time.Duration
}

// Scheduler owns the format-selection state machine and the fairness-credit
// bookkeeping across scheduling rounds. Single-threaded, like the rest of
// the engine.
type Scheduler struct {
	cfg  *config.Config
	phy  ports.Phy
	rate ports.RateControl
	reg  *registry.CandidateRegistry
	bw   ru.Bandwidth
	log  *slog.Logger

	lastWasDlMu     bool
	bsrpOutstanding bool
}

// New returns a scheduler operating the given channel bandwidth.
func New(cfg *config.Config, phy ports.Phy, rate ports.RateControl, reg *registry.CandidateRegistry, bw ru.Bandwidth, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		phy:  phy,
		rate: rate,
		reg:  reg,
		bw:   bw,
		log:  log,
	}
}

// Data tones per channel width, for bandwidth-share fairness debits.
var channelTones = map[ru.Bandwidth]int{
	ru.BW20:  242,
	ru.BW40:  484,
	ru.BW80:  996,
	ru.BW160: 1992,
}

// NotifyAccessGranted runs one scheduling round: select the format, build
// the corresponding transmission, and report the verdict.
func (s *Scheduler) NotifyAccessGranted(r *Round) *Plan {
	plan := s.selectAndBuild(r)
	telemetry.MuFormatSelected.WithLabelValues(plan.Format.String()).Inc()
	s.log.Debug("scheduling round complete",
		"ac", r.Ac.String(),
		"format", plan.Format.String(),
		"remaining", r.Remaining)
	return plan
}

func (s *Scheduler) selectAndBuild(r *Round) *Plan {
	if s.cfg.EnableUlOfdma && s.lastWasDlMu && s.cfg.EnableBsrp {
		if plan := s.buildUlMu(r, wire.TriggerBsrp); plan != nil {
			return plan
		}
	} else if s.cfg.EnableUlOfdma && (s.lastWasDlMu || s.bsrpOutstanding) {
		if plan := s.buildUlMu(r, wire.TriggerBasic); plan != nil {
			return plan
		}
	}
	return s.buildDlMu(r)
}

// picked is one qualifying downlink candidate with the frame that qualified
// it and the tentative single-user vector used for the fit check.
type picked struct {
	cand  *registry.Candidate
	frame *domain.Mpdu
}

// qualifies reports whether the candidate has a queued frame the remaining
// budget can carry, and returns that frame.
func (s *Scheduler) qualifies(c *registry.Candidate, r *Round) (*domain.Mpdu, bool) {
	frame, ok := r.Queue.PeekFor(c.Address, 0)
	if !ok {
		return nil, false
	}
	if domain.TidToAccessCategory(frame.Header.Tid) != r.Ac {
		return nil, false
	}
	if !c.HasBaAgreement(frame.Header.Tid) {
		return nil, false
	}
	vec := s.rate.DataTxVector(&frame.Header)
	if !s.fits(frame.Size(), vec, frame.Header.Addr1, r.Remaining) {
		return nil, false
	}
	return frame, true
}

// fits applies the uniform budget check: data time plus the acknowledgment
// leg against the remaining TXOP.
func (s *Scheduler) fits(size int, vec *domain.TxVector, receiver net.HardwareAddr, remaining time.Duration) bool {
	data := s.phy.TxDuration(size, vec)
	ba := s.phy.TxDuration(policy.BlockAckResponseSize(), s.rate.AckTxVector(receiver, ports.ModeBlockAck))
	return data+domain.Sifs+ba <= remaining
}

func (s *Scheduler) buildDlMu(r *Round) *Plan {
	cands := s.reg.Candidates(r.Ac)

	var selected []picked
	taken := make(map[domain.AID]struct{})
	for _, c := range cands {
		if len(selected) == s.cfg.MaxDlMuStations {
			break
		}
		frame, ok := s.qualifies(c, r)
		if !ok {
			continue
		}
		selected = append(selected, picked{cand: c, frame: frame})
		taken[c.Aid] = struct{}{}
	}

	if len(selected) == 0 {
		if s.cfg.ForceDlMu {
			return &Plan{Format: FormatNone}
		}
		s.lastWasDlMu = false
		return &Plan{Format: FormatSu}
	}

	rt, count, central := ru.EqualSizedRUsForStations(s.bw, len(selected))
	selected = selected[:count]

	var extra []picked
	if s.cfg.UseCentral26 && central > 0 {
		for _, c := range cands {
			if len(extra) == central {
				break
			}
			if _, done := taken[c.Aid]; done {
				continue
			}
			frame, ok := s.qualifies(c, r)
			if !ok {
				continue
			}
			extra = append(extra, picked{cand: c, frame: frame})
		}
	}

	equalRus := ru.RUsOfType(s.bw, rt)
	centralRus := ru.Central26ToneRUs(s.bw, rt)
	if len(equalRus) < len(selected) || len(centralRus) < len(extra) {
		panic("musched: resource-unit group count does not match the recipient count")
	}

	vector := &domain.TxVector{
		Format:    domain.FormatDlMu,
		Bandwidth: s.bw,
	}
	all := make([]picked, 0, len(selected)+len(extra))
	for i, p := range selected {
		suVec := s.rate.DataTxVector(&p.frame.Header)
		vector.SetUserSpec(p.cand.Aid, domain.UserSpec{RU: equalRus[i], Mcs: suVec.Mcs, Nss: 1})
		all = append(all, p)
	}
	for i, p := range extra {
		suVec := s.rate.DataTxVector(&p.frame.Header)
		vector.SetUserSpec(p.cand.Aid, domain.UserSpec{RU: centralRus[i], Mcs: suVec.Mcs, Nss: 1})
		all = append(all, p)
	}

	// Re-verify every frame under the finalized vector; the per-station
	// rate may have dropped with the narrower RU.
	kept := all[:0]
	for _, p := range all {
		if s.fits(p.frame.Size(), vector, p.frame.Header.Addr1, r.Remaining) {
			kept = append(kept, p)
			continue
		}
		s.log.Debug("station dropped at re-verification", "aid", uint16(p.cand.Aid))
		delete(vector.Users, p.cand.Aid)
	}
	if len(kept) == 0 {
		s.lastWasDlMu = false
		return &Plan{Format: FormatSu}
	}

	plan := s.assemblePsdus(r, vector, kept)
	s.creditRound(r.Ac, plan, kept)
	s.lastWasDlMu = true
	return &Plan{Format: FormatDlMu, DlMu: plan}
}

// assemblePsdus aggregates each kept station's traffic — A-MSDU growth
// first, then further MPDUs — and produces the PSDU map and the DL-MU
// acknowledgment sequence.
func (s *Scheduler) assemblePsdus(r *Round, vector *domain.TxVector, kept []picked) *DlMuPlan {
	plan := &DlMuPlan{
		Vector: vector,
		Psdus:  make(map[domain.AID]*ports.Psdu),
		Ack:    &domain.AckMethod{Variant: domain.AckDlMuBarBaSequence},
	}
	var maxData time.Duration
	for _, p := range kept {
		addr := p.frame.Header.Addr1
		s.assignSeq(r, p.frame)
		r.Tracker.AddMpdu(p.frame)
		handle := r.Arena.Add(*p.frame)
		psdu := &ports.Psdu{Receiver: addr, Mpdus: []domain.MpduHandle{handle}}
		plan.Frames = append(plan.Frames, p.frame)

		for {
			msdu, ok := r.Queue.PeekMsduFor(addr)
			if !ok {
				break
			}
			size, ok := r.Tracker.SizeIfAggregateMsdu(msdu)
			if !ok || !s.fits(size, vector, addr, r.Remaining) {
				break
			}
			r.Tracker.AggregateMsdu(msdu)
			rec, _ := r.Tracker.Record(addr)
			r.Arena.Get(handle).PayloadSize = rec.AmsduSize
		}

		for skip := 1; ; skip++ {
			next, ok := r.Queue.PeekFor(addr, skip)
			if !ok {
				break
			}
			if !s.fits(r.Tracker.SizeIfAddMpdu(next), vector, addr, r.Remaining) {
				break
			}
			s.assignSeq(r, next)
			r.Tracker.AddMpdu(next)
			psdu.Mpdus = append(psdu.Mpdus, r.Arena.Add(*next))
			plan.Frames = append(plan.Frames, next)
		}

		plan.Psdus[p.cand.Aid] = psdu
		plan.Ack.StationsReplyingWithBlockAck = append(plan.Ack.StationsReplyingWithBlockAck,
			domain.StationAckInfo{
				Receiver:       addr,
				Tid:            p.frame.Header.Tid,
				ResponseVector: s.rate.AckTxVector(addr, ports.ModeBlockAck),
				BarVector:      s.rate.DataTxVector(&p.frame.Header),
			})
		plan.Ack.SetQosAckPolicy(p.frame.Header.Key(), domain.QosBlockAck)

		if d := s.phy.TxDuration(r.Tracker.SizeFor(addr), vector); d > maxData {
			maxData = d
		}
	}
	plan.Duration = s.phy.PreambleDuration(vector) + maxData
	return plan
}

func (s *Scheduler) assignSeq(r *Round, m *domain.Mpdu) {
	if m.Header.Retry || m.Header.Fragment {
		return
	}
	m.Header.SeqNo = r.Seq.Next(m.Header.Key())
}

// creditRound applies the fairness update: every listed station earns an
// equal share of the achieved airtime, every scheduled station pays for the
// bandwidth fraction it occupied, and the list is re-ranked.
func (s *Scheduler) creditRound(ac domain.AccessCategory, plan *DlMuPlan, kept []picked) {
	listed := len(s.reg.Candidates(ac))
	if listed == 0 {
		return
	}
	airtime := plan.Duration.Seconds()
	s.reg.CreditAll(ac, airtime/float64(listed), s.cfg.MaxCredit)
	total := float64(channelTones[s.bw])
	for _, p := range kept {
		spec, ok := plan.Vector.UserSpecFor(p.cand.Aid)
		if !ok {
			continue
		}
		s.reg.Debit(ac, p.cand.Aid, airtime*float64(spec.RU.Type.Tones())/total)
	}
	s.reg.SortByCredit(ac)
}

// ulSymbol is the UL Length field granularity of a trigger frame.
const ulSymbol = 4 * time.Microsecond

func (s *Scheduler) buildUlMu(r *Round, tt wire.TriggerType) *Plan {
	var ranked []*registry.Candidate
	for _, c := range s.reg.Candidates(r.Ac) {
		// A BSRP polls everyone; a basic trigger only solicits stations
		// known to hold data.
		if tt == wire.TriggerBsrp || c.BufferBytes() > 0 {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].BufferBytes() > ranked[j].BufferBytes()
	})

	rt, count, _ := ru.EqualSizedRUsForStations(s.bw, len(ranked))
	ranked = ranked[:count]
	rus := ru.RUsOfType(s.bw, rt)
	if len(rus) < count {
		panic("musched: resource-unit group count does not match the solicited count")
	}

	response := &domain.TxVector{
		Format:    domain.FormatTb,
		Bandwidth: s.bw,
		Mcs:       domain.Mcs(s.cfg.UlMcs),
		Nss:       1,
	}
	trigger := &wire.Trigger{
		Type:        tt,
		UlBandwidth: s.bw,
		ApTxPower:   int8(math.Round(s.phy.TxPowerDbm())),
	}
	var solicited []domain.AID
	largest := 0
	for i, c := range ranked {
		rssi, known := s.rate.MostRecentRssi(c.Address)
		if !known {
			rssi = -70
		}
		trigger.Users = append(trigger.Users, wire.TriggerUserInfo{
			Aid:          uint16(c.Aid),
			RU:           rus[i],
			UlFecLdpc:    true,
			UlMcs:        s.cfg.UlMcs,
			Ss:           &wire.SsAllocation{StartingSs: 1, Count: 1},
			UlTargetRssi: wire.EncodeUlTargetRssi(rssi),
		})
		response.SetUserSpec(c.Aid, domain.UserSpec{RU: rus[i], Mcs: domain.Mcs(s.cfg.UlMcs), Nss: 1})
		solicited = append(solicited, c.Aid)
		if c.BufferBytes() > largest {
			largest = c.BufferBytes()
		}
	}

	triggerVector := s.rate.DataTxVector(&domain.MacHeader{})
	triggerDur := s.phy.TxDuration(20+trigger.Size(), triggerVector)
	grant := r.Remaining - triggerDur - domain.Sifs
	if max := s.phy.MaxPpduDuration(); grant > max {
		grant = max
	}
	if largest > 0 {
		if need := s.phy.TxDuration(largest, response); need < grant {
			grant = need
		}
	}
	if s.phy.TxDuration(s.cfg.MinUlFrameBytes, response) > grant {
		// Not worth soliciting anything this short: defer.
		s.log.Debug("uplink grant below minimum solicited size", "grant", grant)
		return &Plan{Format: FormatNone}
	}
	trigger.UlLength = uint16(grant / ulSymbol)

	telemetry.TriggerFramesBuilt.WithLabelValues(tt.String()).Inc()
	s.bsrpOutstanding = tt == wire.TriggerBsrp
	s.lastWasDlMu = false
	return &Plan{Format: FormatUlMu, UlMu: &UlMuPlan{
		Trigger:        trigger,
		TriggerVector:  triggerVector,
		ResponseVector: response,
		Solicited:      solicited,
		Duration:       grant,
	}}
}
