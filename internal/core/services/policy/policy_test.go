package policy

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
	"github.com/lcalzada-xor/hemac/internal/core/ports"
	"github.com/lcalzada-xor/hemac/internal/core/services/agg"
)

var (
	sta, _       = net.ParseMAC("02:00:00:00:00:01")
	ap, _        = net.ParseMAC("02:00:00:00:00:ff")
	broadcast, _ = net.ParseMAC("ff:ff:ff:ff:ff:ff")
)

// stubPhy charges one microsecond per byte so durations are predictable.
type stubPhy struct{}

func (stubPhy) Transmit(*domain.TxVector, map[domain.AID]*ports.Psdu) {}
func (stubPhy) TxDuration(size int, _ *domain.TxVector) time.Duration {
	return time.Duration(size) * time.Microsecond
}
func (stubPhy) PreambleDuration(*domain.TxVector) time.Duration { return 40 * time.Microsecond }
func (stubPhy) MaxPpduDuration() time.Duration                  { return 5484 * time.Microsecond }
func (stubPhy) TxPowerDbm() float64                             { return 20 }

type stubRate struct{}

func (stubRate) DataTxVector(*domain.MacHeader) *domain.TxVector {
	return &domain.TxVector{Mcs: 7, Nss: 1}
}
func (stubRate) AckTxVector(net.HardwareAddr, ports.AckVectorMode) *domain.TxVector {
	return &domain.TxVector{Mcs: 0, Nss: 1}
}
func (stubRate) MostRecentRssi(net.HardwareAddr) (float64, bool) { return -60, true }
func (stubRate) ReportDataFailed(*domain.Mpdu)                   {}

func unicastMpdu(payload int) *domain.Mpdu {
	return &domain.Mpdu{
		Header:      domain.MacHeader{Addr1: sta, Addr2: ap, Tid: 0},
		PayloadSize: payload,
	}
}

func params() *TxParams {
	return &TxParams{
		Vector:  &domain.TxVector{},
		Tracker: agg.New(false),
	}
}

func TestDefaultAckPolicy_GroupAddressedGetsNoAck(t *testing.T) {
	pol := &DefaultAckPolicy{Rate: stubRate{}}
	m := &domain.Mpdu{Header: domain.MacHeader{Addr1: broadcast, Addr2: ap, Tid: 0}}

	method, changed := pol.TryAddMpdu(m, params())
	require.True(t, changed)
	assert.Equal(t, domain.AckNone, method.Variant)

	got, ok := method.QosAckPolicy(m.Header.Key())
	require.True(t, ok)
	assert.Equal(t, domain.QosNoAck, got)

	d, ok := method.AckTime()
	require.True(t, ok)
	assert.Zero(t, d)
}

func TestDefaultAckPolicy_UnicastGetsNormalAck(t *testing.T) {
	pol := &DefaultAckPolicy{Rate: stubRate{}}
	m := unicastMpdu(500)

	method, changed := pol.TryAddMpdu(m, params())
	require.True(t, changed)
	assert.Equal(t, domain.AckNormal, method.Variant)
	require.NotNil(t, method.ResponseVector)

	got, ok := method.QosAckPolicy(m.Header.Key())
	require.True(t, ok)
	assert.Equal(t, domain.QosNormalAck, got)

	// Ack time is lazy: unset until the budget first needs it.
	_, ok = method.AckTime()
	assert.False(t, ok)
}

func TestDefaultAckPolicy_KeepsValidMethod(t *testing.T) {
	pol := &DefaultAckPolicy{Rate: stubRate{}}
	p := params()

	method, changed := pol.TryAddMpdu(unicastMpdu(500), p)
	require.True(t, changed)
	p.Ack = method

	second := unicastMpdu(300)
	second.Header.Tid = 5
	replacement, changed := pol.TryAddMpdu(second, p)
	assert.False(t, changed)
	assert.Nil(t, replacement)

	// The kept method was stamped for the new (receiver, TID) pair too.
	got, ok := p.Ack.QosAckPolicy(second.Header.Key())
	require.True(t, ok)
	assert.Equal(t, domain.QosNormalAck, got)
}

func TestDefaultAckPolicy_MsduAggregationKeepsMethod(t *testing.T) {
	pol := &DefaultAckPolicy{Rate: stubRate{}}
	p := params()
	p.Ack = &domain.AckMethod{Variant: domain.AckNormal}

	method, changed := pol.TryAggregateMsdu(&domain.Msdu{Receiver: sta, Tid: 0, Size: 100}, p)
	assert.False(t, changed)
	assert.Nil(t, method)
}

func TestDefaultProtectionPolicy_BelowThresholdNoProtection(t *testing.T) {
	pol := &DefaultProtectionPolicy{Rate: stubRate{}, Phy: stubPhy{}, RtsThreshold: 1000}

	method, changed := pol.TryAddMpdu(unicastMpdu(100), params())
	require.True(t, changed)
	assert.Equal(t, domain.ProtectionNone, method.Variant)
	assert.Zero(t, method.Time)
}

func TestDefaultProtectionPolicy_AboveThresholdRtsCts(t *testing.T) {
	pol := &DefaultProtectionPolicy{Rate: stubRate{}, Phy: stubPhy{}, RtsThreshold: 256}

	method, changed := pol.TryAddMpdu(unicastMpdu(500), params())
	require.True(t, changed)
	assert.Equal(t, domain.ProtectionRtsCts, method.Variant)
	require.NotNil(t, method.RtsVector)
	require.NotNil(t, method.CtsVector)

	want := 20*time.Microsecond + domain.Sifs + 14*time.Microsecond + domain.Sifs
	assert.Equal(t, want, method.Time)
}

func TestDefaultProtectionPolicy_GroupAddressedNeverProtected(t *testing.T) {
	pol := &DefaultProtectionPolicy{Rate: stubRate{}, Phy: stubPhy{}, RtsThreshold: 10}
	m := &domain.Mpdu{
		Header:      domain.MacHeader{Addr1: broadcast, Addr2: ap},
		PayloadSize: 5000,
	}
	method, changed := pol.TryAddMpdu(m, params())
	require.True(t, changed)
	assert.Equal(t, domain.ProtectionNone, method.Variant)
}

func TestDefaultProtectionPolicy_KeepsValidMethod(t *testing.T) {
	pol := &DefaultProtectionPolicy{Rate: stubRate{}, Phy: stubPhy{}, RtsThreshold: 100000}
	p := params()

	method, changed := pol.TryAddMpdu(unicastMpdu(100), p)
	require.True(t, changed)
	p.Protection = method

	replacement, changed := pol.TryAddMpdu(unicastMpdu(200), p)
	assert.False(t, changed)
	assert.Nil(t, replacement)
}

func TestEnsureAckTime_NormalAck(t *testing.T) {
	method := &domain.AckMethod{
		Variant:        domain.AckNormal,
		ResponseVector: &domain.TxVector{},
	}
	d := EnsureAckTime(stubPhy{}, method)
	assert.Equal(t, domain.Sifs+14*time.Microsecond, d)

	// Stamped: a second call returns the cached value.
	got, ok := method.AckTime()
	require.True(t, ok)
	assert.Equal(t, d, got)
	assert.Equal(t, d, EnsureAckTime(stubPhy{}, method))
}

// A DL-MU BAR/BA sequence with exactly one station replying with a normal
// ack costs one SIFS plus that ack's duration; the block-ack and BAR
// branches contribute nothing.
func TestEnsureAckTime_DlMuBarBaSequence_SingleNormalAck(t *testing.T) {
	method := &domain.AckMethod{
		Variant: domain.AckDlMuBarBaSequence,
		StationsReplyingWithNormalAck: []domain.StationAckInfo{
			{Receiver: sta, ResponseVector: &domain.TxVector{}},
		},
	}
	d := EnsureAckTime(stubPhy{}, method)
	assert.Equal(t, domain.Sifs+14*time.Microsecond, d)
}

func TestEnsureAckTime_DlMuAggregateTf_SlowestResponderBounds(t *testing.T) {
	method := &domain.AckMethod{
		Variant: domain.AckDlMuAggregateTf,
		StationsReplyingWithBlockAck: []domain.StationAckInfo{
			{Receiver: sta, ResponseVector: &domain.TxVector{}},
			{Receiver: ap, ResponseVector: &domain.TxVector{}},
		},
	}
	d := EnsureAckTime(stubPhy{}, method)
	// Compressed BA body is 12 bytes plus 20 bytes of control framing.
	assert.Equal(t, domain.Sifs+32*time.Microsecond, d)
}

func TestEnsureAckTime_UnknownVariantPanics(t *testing.T) {
	method := &domain.AckMethod{Variant: domain.AckVariant(99)}
	assert.Panics(t, func() { EnsureAckTime(stubPhy{}, method) })
}
