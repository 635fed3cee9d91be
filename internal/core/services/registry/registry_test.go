package registry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/hemac/internal/core/domain"
)

func mac(last byte) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0, 0, 0, 0, last}
}

func TestRegistry_AssociateListsEveryAccessCategory(t *testing.T) {
	r := New()
	r.Associate(1, mac(1))
	r.Associate(2, mac(2))

	for _, ac := range domain.AccessCategories() {
		cands := r.Candidates(ac)
		require.Len(t, cands, 2, "%s", ac)
		assert.Equal(t, domain.AID(1), cands[0].Aid)
		assert.Equal(t, domain.AID(2), cands[1].Aid)
		assert.Zero(t, cands[0].Credit)
	}
}

func TestRegistry_DeassociateRemovesEverywhere(t *testing.T) {
	r := New()
	r.Associate(1, mac(1))
	r.Associate(2, mac(2))
	r.Deassociate(1)

	_, ok := r.Station(1)
	assert.False(t, ok)
	for _, ac := range domain.AccessCategories() {
		cands := r.Candidates(ac)
		require.Len(t, cands, 1)
		assert.Equal(t, domain.AID(2), cands[0].Aid)
	}
}

func TestRegistry_BaAgreements(t *testing.T) {
	r := New()
	r.Associate(1, mac(1))

	s, ok := r.Station(1)
	require.True(t, ok)
	assert.False(t, s.HasBaAgreement(0))

	r.NotifyBaEstablished(1, 0)
	assert.True(t, s.HasBaAgreement(0))
	assert.False(t, s.HasBaAgreement(5))

	r.NotifyBaTornDown(1, 0)
	assert.False(t, s.HasBaAgreement(0))
}

func TestRegistry_CreditRoundAndResort(t *testing.T) {
	r := New()
	r.Associate(1, mac(1))
	r.Associate(2, mac(2))
	r.Associate(3, mac(3))

	r.CreditAll(domain.AcBE, 2.0, 8.0)
	r.Debit(domain.AcBE, 1, 3.0)
	r.SortByCredit(domain.AcBE)

	cands := r.Candidates(domain.AcBE)
	require.Len(t, cands, 3)
	// 2 and 3 tie at 2.0 and keep insertion order; 1 fell to the back.
	assert.Equal(t, domain.AID(2), cands[0].Aid)
	assert.Equal(t, domain.AID(3), cands[1].Aid)
	assert.Equal(t, domain.AID(1), cands[2].Aid)

	// Other access categories keep their own ordering.
	assert.Equal(t, domain.AID(1), r.Candidates(domain.AcVO)[0].Aid)
}

func TestRegistry_CreditSaturatesAtCap(t *testing.T) {
	r := New()
	r.Associate(1, mac(1))
	r.CreditAll(domain.AcBE, 5.0, 8.0)
	r.CreditAll(domain.AcBE, 5.0, 8.0)

	assert.Equal(t, 8.0, r.Candidates(domain.AcBE)[0].Credit)
	// Credits are per access category.
	assert.Zero(t, r.Candidates(domain.AcVI)[0].Credit)
}

func TestRegistry_BufferStatus(t *testing.T) {
	r := New()
	r.Associate(1, mac(1))
	assert.Zero(t, mustStation(t, r, 1).BufferBytes())

	r.SetBufferStatus(1, 1500)
	assert.Equal(t, 1500, mustStation(t, r, 1).BufferBytes())

	r.SetBufferStatus(9, 99) // unknown AID is a no-op
}

func mustStation(t *testing.T, r *CandidateRegistry, aid domain.AID) *StationInfo {
	t.Helper()
	s, ok := r.Station(aid)
	require.True(t, ok)
	return s
}
