package agg

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
)

var (
	sta1, _ = net.ParseMAC("02:00:00:00:00:01")
	sta2, _ = net.ParseMAC("02:00:00:00:00:02")
	ap, _   = net.ParseMAC("02:00:00:00:00:ff")
)

func mpdu(receiver net.HardwareAddr, tid domain.TID, seq uint16, payload int) *domain.Mpdu {
	return &domain.Mpdu{
		Header: domain.MacHeader{
			Addr1: receiver,
			Addr2: ap,
			Tid:   tid,
			SeqNo: seq,
		},
		PayloadSize: payload,
	}
}

func TestTracker_SizeIfAddMpduIsPure(t *testing.T) {
	tr := New(false)
	m := mpdu(sta1, 0, 0, 100)

	first := tr.SizeIfAddMpdu(m)
	second := tr.SizeIfAddMpdu(m)
	assert.Equal(t, first, second, "query must have no side effects")

	tr.AddMpdu(m)
	assert.Equal(t, first, tr.SizeFor(sta1))
}

func TestTracker_SingleMpduHasNoAmpduOverhead(t *testing.T) {
	tr := New(false)
	m := mpdu(sta1, 0, 0, 100)
	tr.AddMpdu(m)
	assert.Equal(t, m.Size(), tr.SizeFor(sta1))
}

func TestTracker_MandatoryAmpduFramesSingleMpdu(t *testing.T) {
	tr := New(true)
	m := mpdu(sta1, 0, 0, 100)
	tr.AddMpdu(m)
	assert.Equal(t, domain.AmpduSubframeHeader+m.Size(), tr.SizeFor(sta1))
}

func TestTracker_SecondMpduFoldsIntoAmpdu(t *testing.T) {
	tr := New(false)
	m1 := mpdu(sta1, 0, 0, 101) // odd size exercises subframe padding
	m2 := mpdu(sta1, 0, 1, 200)

	tr.AddMpdu(m1)
	want := tr.SizeIfAddMpdu(m2)
	tr.AddMpdu(m2)

	padded := (domain.AmpduSubframeHeader + m1.Size() + 3) &^ 3
	assert.Equal(t, padded+domain.AmpduSubframeHeader+m2.Size(), want)
	assert.Equal(t, want, tr.SizeFor(sta1))
}

func TestTracker_RecordsArePerReceiver(t *testing.T) {
	tr := New(false)
	tr.AddMpdu(mpdu(sta1, 0, 0, 100))
	tr.AddMpdu(mpdu(sta2, 0, 0, 300))

	assert.Equal(t, 2, tr.Receivers())
	assert.NotEqual(t, tr.SizeFor(sta1), tr.SizeFor(sta2))

	tr.Clear()
	assert.Equal(t, 0, tr.Receivers())
	assert.Equal(t, 0, tr.SizeFor(sta1))
}

func TestTracker_AggregateMsduGrowsLastMpdu(t *testing.T) {
	tr := New(false)
	tr.AddMpdu(mpdu(sta1, 3, 0, 100))

	msdu := &domain.Msdu{Receiver: sta1, Tid: 3, Size: 80}
	want, ok := tr.SizeIfAggregateMsdu(msdu)
	require.True(t, ok)

	tr.AggregateMsdu(msdu)
	assert.Equal(t, want, tr.SizeFor(sta1))

	// The existing payload was wrapped into a subframe of its own.
	rec, ok := tr.Record(sta1)
	require.True(t, ok)
	wrapped := (domain.AmsduSubframeHeader + 100 + 3) &^ 3
	assert.Equal(t, wrapped+domain.AmsduSubframeHeader+80, rec.AmsduSize)
}

func TestTracker_SizeIfAggregateMsduRefusals(t *testing.T) {
	tr := New(false)

	_, ok := tr.SizeIfAggregateMsdu(&domain.Msdu{Receiver: sta1, Tid: 0, Size: 10})
	assert.False(t, ok, "no mpdu record yet")

	tr.AddMpdu(mpdu(sta1, 0, 0, 100))
	_, ok = tr.SizeIfAggregateMsdu(&domain.Msdu{Receiver: sta1, Tid: 5, Size: 10})
	assert.False(t, ok, "tid mismatch")
}

func TestTracker_AggregateMsduWithoutMpduPanics(t *testing.T) {
	tr := New(false)
	assert.Panics(t, func() {
		tr.AggregateMsdu(&domain.Msdu{Receiver: sta1, Tid: 0, Size: 10})
	})
}

func TestTracker_AggregateMsduTidMismatchPanics(t *testing.T) {
	tr := New(false)
	tr.AddMpdu(mpdu(sta1, 0, 0, 100))
	assert.Panics(t, func() {
		tr.AggregateMsdu(&domain.Msdu{Receiver: sta1, Tid: 4, Size: 10})
	})
}

func TestTracker_SequenceNumbersRecordedPerTid(t *testing.T) {
	tr := New(false)
	tr.AddMpdu(mpdu(sta1, 0, 10, 100))
	tr.AddMpdu(mpdu(sta1, 5, 10, 100)) // same seq, different tid is fine
	tr.AddMpdu(mpdu(sta1, 0, 11, 100))

	rec, ok := tr.Record(sta1)
	require.True(t, ok)
	assert.Len(t, rec.SeqNumbers[0], 2)
	assert.Len(t, rec.SeqNumbers[5], 1)
}

func TestTracker_DuplicateSequencePanics(t *testing.T) {
	tr := New(false)
	tr.AddMpdu(mpdu(sta1, 0, 10, 100))
	assert.Panics(t, func() {
		tr.AddMpdu(mpdu(sta1, 0, 10, 100))
	})
}

func TestTracker_RetransmissionMayRepeatSequence(t *testing.T) {
	tr := New(false)
	tr.AddMpdu(mpdu(sta1, 0, 10, 100))

	retry := mpdu(sta1, 0, 10, 100)
	retry.Header.Retry = true
	assert.NotPanics(t, func() { tr.AddMpdu(retry) })
}
