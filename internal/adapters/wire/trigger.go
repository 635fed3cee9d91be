package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/hemac/internal/core/ru"
)

// TriggerType is the trigger frame subtype.
type TriggerType uint8

const (
	TriggerBasic TriggerType = iota
	TriggerBfrp
	TriggerMuBar
	TriggerMuRts
	TriggerBsrp
	TriggerGcrMuBar
	TriggerBqrp
	TriggerNfrp
	triggerTypeCount
)

func (t TriggerType) String() string {
	switch t {
	case TriggerBasic:
		return "BASIC"
	case TriggerBfrp:
		return "BFRP"
	case TriggerMuBar:
		return "MU_BAR"
	case TriggerMuRts:
		return "MU_RTS"
	case TriggerBsrp:
		return "BSRP"
	case TriggerGcrMuBar:
		return "GCR_MU_BAR"
	case TriggerBqrp:
		return "BQRP"
	case TriggerNfrp:
		return "NFRP"
	}
	return fmt.Sprintf("TriggerType(%d)", uint8(t))
}

// AID sentinels of the User Info list.
const (
	AidRaUnassociated = 0
	AidRaAssociated   = 2045
	AidPadding        = 4095
)

// SsAllocation is the spatial-stream allocation of a station-addressed
// User Info field: the first stream it transmits on and how many (1-based).
type SsAllocation struct {
	StartingSs uint8
	Count      uint8
}

// RaRuInfo replaces the spatial-stream allocation when the AID field is one
// of the random-access sentinels.
type RaRuInfo struct {
	Count int // contiguous random-access RUs, 1-32
	More  bool
}

// TriggerUserInfo is one User Info field of a trigger frame. Exactly one of
// Ss and RaRu is set, according to the AID. The dependent tail depends on
// the enclosing trigger type: an embedded Block Ack Request for MU-BAR, a
// feedback segment byte for BFRP, nothing otherwise.
type TriggerUserInfo struct {
	Aid          uint16
	RU           ru.RU
	UlFecLdpc    bool
	UlMcs        uint8
	UlDcm        bool
	Ss           *SsAllocation
	RaRu         *RaRuInfo
	UlTargetRssi uint8 // 7-bit code, see EncodeUlTargetRssi

	MuBar           *BlockAckRequest // MU-BAR dependent field
	FeedbackSegment uint8            // BFRP dependent field
}

// EncodeUlTargetRssi maps a target receive power in dBm onto the 7-bit
// code: 0 is -110 dBm, 90 is -20 dBm, values outside are clamped.
func EncodeUlTargetRssi(dbm float64) uint8 {
	if dbm < -110 {
		dbm = -110
	}
	if dbm > -20 {
		dbm = -20
	}
	return uint8(dbm + 110)
}

// DecodeUlTargetRssi is the inverse of EncodeUlTargetRssi.
func DecodeUlTargetRssi(code uint8) float64 {
	return float64(code) - 110
}

// Trigger is the HE trigger frame body: the common info field followed by
// an ordered User Info list, terminated on air by the padding AID.
type Trigger struct {
	layers.BaseLayer
	Type           TriggerType
	UlLength       uint16
	MoreTf         bool
	CsRequired     bool
	UlBandwidth    ru.Bandwidth
	GiLtfType      uint8 // 2-bit code
	ApTxPower      int8
	UlSpatialReuse uint16
	Users          []TriggerUserInfo
}

func (t *Trigger) LayerType() gopacket.LayerType     { return LayerTypeTrigger }
func (t *Trigger) CanDecode() gopacket.LayerClass    { return LayerTypeTrigger }
func (t *Trigger) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

const triggerCommonLen = 8

func bwCode(bw ru.Bandwidth) (uint8, error) {
	switch bw {
	case ru.BW20:
		return 0, nil
	case ru.BW40:
		return 1, nil
	case ru.BW80:
		return 2, nil
	case ru.BW160:
		return 3, nil
	}
	return 0, fmt.Errorf("wire: no UL bandwidth code for %d MHz", bw)
}

func bwFromCode(code uint8) ru.Bandwidth {
	switch code & 0x03 {
	case 0:
		return ru.BW20
	case 1:
		return ru.BW40
	case 2:
		return ru.BW80
	}
	return ru.BW160
}

func (u *TriggerUserInfo) dependentLen(tt TriggerType) int {
	switch tt {
	case TriggerMuBar:
		if u.MuBar != nil {
			return u.MuBar.Size()
		}
		return 0
	case TriggerBfrp:
		return 1
	}
	return 0
}

// Size returns the serialized trigger length, including the two padding
// bytes that terminate the User Info list.
func (t *Trigger) Size() int {
	size := triggerCommonLen + 2
	for i := range t.Users {
		size += 5 + t.Users[i].dependentLen(t.Type)
	}
	return size
}

func (t *Trigger) SerializeTo(buf gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if t.Type >= triggerTypeCount {
		return fmt.Errorf("%w: %d", ErrBadTrigType, uint8(t.Type))
	}
	data, err := buf.PrependBytes(t.Size())
	if err != nil {
		return err
	}
	data[0] = uint8(t.Type)
	binary.LittleEndian.PutUint16(data[1:3], t.UlLength)
	var flags uint8
	if t.MoreTf {
		flags |= 0x01
	}
	if t.CsRequired {
		flags |= 0x02
	}
	code, err := bwCode(t.UlBandwidth)
	if err != nil {
		return err
	}
	flags |= code << 2
	flags |= (t.GiLtfType & 0x03) << 4
	data[3] = flags
	data[4] = uint8(t.ApTxPower)
	binary.LittleEndian.PutUint16(data[5:7], t.UlSpatialReuse)
	data[7] = 0

	offset := triggerCommonLen
	for i := range t.Users {
		n, err := t.Users[i].serializeInto(data[offset:], t.Type)
		if err != nil {
			return err
		}
		offset += n
	}
	// Padding AID terminates the list.
	binary.LittleEndian.PutUint16(data[offset:offset+2], AidPadding)
	return nil
}

func (u *TriggerUserInfo) serializeInto(data []byte, tt TriggerType) (int, error) {
	ruByte, err := EncodeRuAllocation(u.RU)
	if err != nil {
		return 0, err
	}
	var packed uint64
	packed |= uint64(u.Aid & 0x0fff)
	packed |= uint64(ruByte) << 12
	if u.UlFecLdpc {
		packed |= 1 << 20
	}
	packed |= uint64(u.UlMcs&0x0f) << 21
	if u.UlDcm {
		packed |= 1 << 25
	}
	switch {
	case u.RaRu != nil:
		packed |= uint64((u.RaRu.Count-1)&0x1f) << 26
		if u.RaRu.More {
			packed |= 1 << 31
		}
	case u.Ss != nil:
		packed |= uint64((u.Ss.StartingSs-1)&0x07) << 26
		packed |= uint64((u.Ss.Count-1)&0x07) << 29
	}
	packed |= uint64(u.UlTargetRssi&0x7f) << 32

	for i := 0; i < 5; i++ {
		data[i] = byte(packed >> (8 * i))
	}
	offset := 5
	switch tt {
	case TriggerMuBar:
		if u.MuBar != nil {
			if err := u.MuBar.serializeInto(data[offset : offset+u.MuBar.Size()]); err != nil {
				return 0, err
			}
			offset += u.MuBar.Size()
		}
	case TriggerBfrp:
		data[offset] = u.FeedbackSegment
		offset++
	}
	return offset, nil
}

func (t *Trigger) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < triggerCommonLen {
		df.SetTruncated()
		return fmt.Errorf("%w: trigger of %d bytes", ErrTruncated, len(data))
	}
	if data[0] >= uint8(triggerTypeCount) {
		return fmt.Errorf("%w: %d", ErrBadTrigType, data[0])
	}
	decoded := Trigger{
		Type:           TriggerType(data[0]),
		UlLength:       binary.LittleEndian.Uint16(data[1:3]),
		MoreTf:         data[3]&0x01 != 0,
		CsRequired:     data[3]&0x02 != 0,
		UlBandwidth:    bwFromCode(data[3] >> 2),
		GiLtfType:      data[3] >> 4 & 0x03,
		ApTxPower:      int8(data[4]),
		UlSpatialReuse: binary.LittleEndian.Uint16(data[5:7]),
	}

	offset := triggerCommonLen
	for offset+2 <= len(data) {
		aid := binary.LittleEndian.Uint16(data[offset:offset+2]) & 0x0fff
		if aid == AidPadding {
			// The rest of the frame is padding.
			offset = len(data)
			break
		}
		if offset+5 > len(data) {
			df.SetTruncated()
			return fmt.Errorf("%w: user info at offset %d", ErrTruncated, offset)
		}
		var packed uint64
		for i := 0; i < 5; i++ {
			packed |= uint64(data[offset+i]) << (8 * i)
		}
		user := TriggerUserInfo{
			Aid:          uint16(packed & 0x0fff),
			UlFecLdpc:    packed&(1<<20) != 0,
			UlMcs:        uint8(packed >> 21 & 0x0f),
			UlDcm:        packed&(1<<25) != 0,
			UlTargetRssi: uint8(packed >> 32 & 0x7f),
		}
		allocated, err := DecodeRuAllocation(uint8(packed >> 12 & 0xff))
		if err != nil {
			return err
		}
		user.RU = allocated
		if user.Aid == AidRaUnassociated || user.Aid == AidRaAssociated {
			user.RaRu = &RaRuInfo{
				Count: int(packed>>26&0x1f) + 1,
				More:  packed&(1<<31) != 0,
			}
		} else {
			user.Ss = &SsAllocation{
				StartingSs: uint8(packed>>26&0x07) + 1,
				Count:      uint8(packed>>29&0x07) + 1,
			}
		}
		offset += 5
		switch decoded.Type {
		case TriggerMuBar:
			bar := &BlockAckRequest{}
			if err := bar.DecodeFromBytes(data[offset:], df); err != nil {
				return err
			}
			// Drop the slice references so the embedded header does not
			// pin the packet buffer.
			bar.BaseLayer = layers.BaseLayer{}
			user.MuBar = bar
			offset += bar.Size()
		case TriggerBfrp:
			if offset >= len(data) {
				df.SetTruncated()
				return fmt.Errorf("%w: BFRP feedback segment", ErrTruncated)
			}
			user.FeedbackSegment = data[offset]
			offset++
		}
		decoded.Users = append(decoded.Users, user)
	}
	decoded.BaseLayer = layers.BaseLayer{Contents: data[:offset], Payload: data[offset:]}
	*t = decoded
	return nil
}
