package wire

import (
	"fmt"

	"github.com/lcalzada-xor/hemac/internal/core/ru"
)

// RU allocation subfield (8 bits): B0 flags the primary 80 MHz half, B7-B1
// carry the allocation code. Codes pack the size classes back to back in
// index order.
const (
	ruCode26Base    = 0  // codes 0-36
	ruCode52Base    = 37 // codes 37-52
	ruCode106Base   = 53 // codes 53-60
	ruCode242Base   = 61 // codes 61-64
	ruCode484Base   = 65 // codes 65-66
	ruCode996Code   = 67
	ruCode2x996Code = 68
)

// EncodeRuAllocation packs an RU into the 8-bit allocation subfield.
func EncodeRuAllocation(r ru.RU) (uint8, error) {
	var code int
	switch r.Type {
	case ru.RU26:
		code = ruCode26Base + r.Index - 1
	case ru.RU52:
		code = ruCode52Base + r.Index - 1
	case ru.RU106:
		code = ruCode106Base + r.Index - 1
	case ru.RU242:
		code = ruCode242Base + r.Index - 1
	case ru.RU484:
		code = ruCode484Base + r.Index - 1
	case ru.RU996:
		code = ruCode996Code
	case ru.RU2x996:
		code = ruCode2x996Code
	default:
		return 0, fmt.Errorf("%w: %s", ErrBadRuCode, r.Type)
	}
	if code < 0 || code > ruCode2x996Code {
		return 0, fmt.Errorf("%w: %s index %d", ErrBadRuCode, r.Type, r.Index)
	}
	b := uint8(code) << 1
	if r.Primary80 {
		b |= 0x01
	}
	return b, nil
}

// DecodeRuAllocation unpacks the 8-bit allocation subfield. Undefined codes
// are a decode error; the caller must not keep partially-decoded state.
func DecodeRuAllocation(b uint8) (ru.RU, error) {
	r := ru.RU{Primary80: b&0x01 != 0}
	code := int(b >> 1)
	switch {
	case code < ruCode52Base:
		r.Type, r.Index = ru.RU26, code-ruCode26Base+1
	case code < ruCode106Base:
		r.Type, r.Index = ru.RU52, code-ruCode52Base+1
	case code < ruCode242Base:
		r.Type, r.Index = ru.RU106, code-ruCode106Base+1
	case code < ruCode484Base:
		r.Type, r.Index = ru.RU242, code-ruCode242Base+1
	case code < ruCode996Code:
		r.Type, r.Index = ru.RU484, code-ruCode484Base+1
	case code == ruCode996Code:
		r.Type, r.Index = ru.RU996, 1
	case code == ruCode2x996Code:
		r.Type, r.Index = ru.RU2x996, 1
	default:
		return ru.RU{}, fmt.Errorf("%w: %d", ErrBadRuCode, code)
	}
	return r, nil
}
