package domain

import (
	"time"

	"github.com/lcalzada-xor/hemac/internal/core/ru"
)

// Mcs is an HE modulation and coding scheme index (0-11).
type Mcs uint8

// PpduFormat distinguishes the preamble the vector describes.
type PpduFormat int

const (
	FormatSu PpduFormat = iota
	FormatDlMu
	FormatTb
)

// UserSpec is the per-station part of a multi-user TxVector: the RU the
// station transmits or receives in, its MCS and its spatial-stream count.
type UserSpec struct {
	RU  ru.RU
	Mcs Mcs
	Nss uint8
}

// TxVector describes one transmission to the PHY boundary. For multi-user
// formats Users maps each solicited or addressed station; single-user
// vectors leave it nil. A vector is owned by the exchange in progress and
// replaced wholesale between exchanges.
type TxVector struct {
	Format        PpduFormat
	Mcs           Mcs
	Nss           uint8
	Bandwidth     ru.Bandwidth
	GuardInterval time.Duration
	BssColor      uint8
	TxPowerLevel  uint8
	Users         map[AID]UserSpec
}

// IsMu reports whether the vector describes a multi-user transmission.
func (v *TxVector) IsMu() bool {
	return v.Format != FormatSu
}

// UserSpecFor returns the per-station spec of a multi-user vector.
func (v *TxVector) UserSpecFor(aid AID) (UserSpec, bool) {
	u, ok := v.Users[aid]
	return u, ok
}

// SetUserSpec records the per-station spec, allocating the map on first use.
func (v *TxVector) SetUserSpec(aid AID, u UserSpec) {
	if v.Users == nil {
		v.Users = make(map[AID]UserSpec)
	}
	v.Users[aid] = u
}

// RateOverride is the higher-layer tag that may accompany a queued frame.
// In non-adaptive mode it replaces the rate-control decision outright; in
// adaptive mode its MCS is a floor on the data rate and its power level a
// ceiling on transmit power.
type RateOverride struct {
	Mcs          Mcs
	TxPowerLevel uint8
}

// Apply folds the override into the vector under the given mode.
func (o *RateOverride) Apply(v *TxVector, adaptive bool) {
	if o == nil {
		return
	}
	if !adaptive {
		v.Mcs = o.Mcs
		v.TxPowerLevel = o.TxPowerLevel
		return
	}
	if o.Mcs > v.Mcs {
		v.Mcs = o.Mcs
	}
	if o.TxPowerLevel < v.TxPowerLevel {
		v.TxPowerLevel = o.TxPowerLevel
	}
}
