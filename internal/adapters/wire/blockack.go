package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// BlockAckVariant selects the negotiated BAR/BA layout.
type BlockAckVariant int

const (
	BasicBlockAck BlockAckVariant = iota
	CompressedBlockAck
	ExtendedCompressedBlockAck
	MultiTidBlockAck
)

func (v BlockAckVariant) String() string {
	switch v {
	case BasicBlockAck:
		return "BASIC"
	case CompressedBlockAck:
		return "COMPRESSED"
	case ExtendedCompressedBlockAck:
		return "EXTENDED_COMPRESSED"
	case MultiTidBlockAck:
		return "MULTI_TID"
	}
	return fmt.Sprintf("BlockAckVariant(%d)", int(v))
}

// bitmapLen returns the BA bitmap length in bytes (per TID for multi-TID).
func (v BlockAckVariant) bitmapLen() int {
	switch v {
	case BasicBlockAck:
		return 128
	case CompressedBlockAck, MultiTidBlockAck:
		return 8
	case ExtendedCompressedBlockAck:
		return 32
	}
	return 0
}

// coveredSeqs is how many sequence numbers the bitmap covers.
func (v BlockAckVariant) coveredSeqs() int {
	switch v {
	case BasicBlockAck:
		return 64 // 16 bits per MPDU
	case CompressedBlockAck, MultiTidBlockAck:
		return 64
	case ExtendedCompressedBlockAck:
		return 256
	}
	return 0
}

// BA/BAR control field bit layout (2 bytes, little endian):
// B0 ack policy, B1 multi-TID, B2 compressed bitmap, B12-B15 TID_INFO.
const (
	baCtrlAckPolicy  = 0x0001
	baCtrlMultiTid   = 0x0002
	baCtrlCompressed = 0x0004
	baCtrlTidShift   = 12
)

func packBaControl(ackPolicy bool, v BlockAckVariant, tidInfo uint8) uint16 {
	var ctrl uint16
	if ackPolicy {
		ctrl |= baCtrlAckPolicy
	}
	switch v {
	case BasicBlockAck:
	case CompressedBlockAck:
		ctrl |= baCtrlCompressed
	case ExtendedCompressedBlockAck:
		ctrl |= baCtrlMultiTid
	case MultiTidBlockAck:
		ctrl |= baCtrlMultiTid | baCtrlCompressed
	}
	ctrl |= uint16(tidInfo&0x0f) << baCtrlTidShift
	return ctrl
}

func unpackBaControl(ctrl uint16) (bool, BlockAckVariant, uint8) {
	v := BasicBlockAck
	switch {
	case ctrl&baCtrlMultiTid != 0 && ctrl&baCtrlCompressed != 0:
		v = MultiTidBlockAck
	case ctrl&baCtrlCompressed != 0:
		v = CompressedBlockAck
	case ctrl&baCtrlMultiTid != 0:
		v = ExtendedCompressedBlockAck
	}
	return ctrl&baCtrlAckPolicy != 0, v, uint8(ctrl >> baCtrlTidShift & 0x0f)
}

// TidInfo is one per-TID block of a multi-TID BAR or BA.
type TidInfo struct {
	Tid         uint8
	StartingSeq uint16
	Bitmap      []byte // BA only, 8 bytes
}

// BlockAckRequest is the Block Ack Request control frame body: the BAR
// control field followed by the starting sequence control (or the per-TID
// sequence for the multi-TID variant).
type BlockAckRequest struct {
	layers.BaseLayer
	AckPolicy   bool
	Variant     BlockAckVariant
	Tid         uint8
	StartingSeq uint16
	Tids        []TidInfo // multi-TID only
}

func (b *BlockAckRequest) LayerType() gopacket.LayerType { return LayerTypeBlockAckRequest }
func (b *BlockAckRequest) CanDecode() gopacket.LayerClass {
	return LayerTypeBlockAckRequest
}
func (b *BlockAckRequest) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// Size returns the serialized length in bytes.
func (b *BlockAckRequest) Size() int {
	if b.Variant == MultiTidBlockAck {
		return 2 + 4*len(b.Tids)
	}
	return 4
}

func (b *BlockAckRequest) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 4 {
		df.SetTruncated()
		return fmt.Errorf("%w: block ack request of %d bytes", ErrTruncated, len(data))
	}
	ctrl := binary.LittleEndian.Uint16(data[0:2])
	ackPolicy, variant, tidInfo := unpackBaControl(ctrl)

	decoded := BlockAckRequest{AckPolicy: ackPolicy, Variant: variant}
	offset := 2
	if variant == MultiTidBlockAck {
		n := int(tidInfo) + 1
		if len(data) < 2+4*n {
			df.SetTruncated()
			return fmt.Errorf("%w: multi-TID block ack request with %d TIDs in %d bytes",
				ErrTruncated, n, len(data))
		}
		for i := 0; i < n; i++ {
			perTid := binary.LittleEndian.Uint16(data[offset : offset+2])
			ssc := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
			decoded.Tids = append(decoded.Tids, TidInfo{
				Tid:         uint8(perTid >> baCtrlTidShift & 0x0f),
				StartingSeq: ssc >> 4,
			})
			offset += 4
		}
	} else {
		decoded.Tid = tidInfo
		decoded.StartingSeq = binary.LittleEndian.Uint16(data[2:4]) >> 4
		offset = 4
	}
	decoded.BaseLayer = layers.BaseLayer{Contents: data[:offset], Payload: data[offset:]}
	*b = decoded
	return nil
}

func (b *BlockAckRequest) SerializeTo(buf gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	data, err := buf.PrependBytes(b.Size())
	if err != nil {
		return err
	}
	return b.serializeInto(data)
}

func (b *BlockAckRequest) serializeInto(data []byte) error {
	tidInfo := b.Tid
	if b.Variant == MultiTidBlockAck {
		if len(b.Tids) == 0 {
			return fmt.Errorf("%w: multi-TID block ack request without TIDs", ErrBadVariant)
		}
		tidInfo = uint8(len(b.Tids) - 1)
	}
	binary.LittleEndian.PutUint16(data[0:2], packBaControl(b.AckPolicy, b.Variant, tidInfo))
	offset := 2
	if b.Variant == MultiTidBlockAck {
		for _, ti := range b.Tids {
			binary.LittleEndian.PutUint16(data[offset:offset+2], uint16(ti.Tid&0x0f)<<baCtrlTidShift)
			binary.LittleEndian.PutUint16(data[offset+2:offset+4], ti.StartingSeq<<4)
			offset += 4
		}
		return nil
	}
	binary.LittleEndian.PutUint16(data[2:4], b.StartingSeq<<4)
	return nil
}

// BlockAck is the Block Ack control frame body: the BA control field, the
// starting sequence control and the received-MPDU bitmap, whose layout
// depends on the negotiated variant.
type BlockAck struct {
	layers.BaseLayer
	AckPolicy   bool
	Variant     BlockAckVariant
	Tid         uint8
	StartingSeq uint16
	Bitmap      []byte
	Tids        []TidInfo // multi-TID only
}

// NewBlockAck returns a Block Ack with an all-zero bitmap of the variant's
// size, covering sequence numbers from startingSeq.
func NewBlockAck(v BlockAckVariant, tid uint8, startingSeq uint16) *BlockAck {
	return &BlockAck{
		Variant:     v,
		Tid:         tid,
		StartingSeq: startingSeq,
		Bitmap:      make([]byte, v.bitmapLen()),
	}
}

func (b *BlockAck) LayerType() gopacket.LayerType     { return LayerTypeBlockAck }
func (b *BlockAck) CanDecode() gopacket.LayerClass    { return LayerTypeBlockAck }
func (b *BlockAck) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// Size returns the serialized length in bytes.
func (b *BlockAck) Size() int {
	if b.Variant == MultiTidBlockAck {
		return 2 + (4+b.Variant.bitmapLen())*len(b.Tids)
	}
	return 4 + b.Variant.bitmapLen()
}

// bitmapIndex maps a sequence number onto its bitmap slot, or -1 when the
// sequence falls outside the window.
func (b *BlockAck) bitmapIndex(seq uint16) int {
	idx := int(seq-b.StartingSeq+4096) % 4096
	if idx >= b.Variant.coveredSeqs() {
		return -1
	}
	return idx
}

// SetReceivedPacket marks the MPDU with the sequence number as received.
// Sequences outside the bitmap window are ignored.
func (b *BlockAck) SetReceivedPacket(seq uint16) {
	idx := b.bitmapIndex(seq)
	if idx < 0 {
		return
	}
	if b.Variant == BasicBlockAck {
		// 16 bits per MPDU, one per fragment; fragment zero only.
		b.Bitmap[idx*2] |= 0x01
		return
	}
	b.Bitmap[idx/8] |= 1 << (idx % 8)
}

// IsPacketReceived reports whether the sequence number is marked received.
func (b *BlockAck) IsPacketReceived(seq uint16) bool {
	idx := b.bitmapIndex(seq)
	if idx < 0 {
		return false
	}
	if b.Variant == BasicBlockAck {
		return b.Bitmap[idx*2]&0x01 != 0
	}
	return b.Bitmap[idx/8]&(1<<(idx%8)) != 0
}

func (b *BlockAck) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 4 {
		df.SetTruncated()
		return fmt.Errorf("%w: block ack of %d bytes", ErrTruncated, len(data))
	}
	ctrl := binary.LittleEndian.Uint16(data[0:2])
	ackPolicy, variant, tidInfo := unpackBaControl(ctrl)

	decoded := BlockAck{AckPolicy: ackPolicy, Variant: variant}
	bl := variant.bitmapLen()
	offset := 2
	if variant == MultiTidBlockAck {
		n := int(tidInfo) + 1
		if len(data) < 2+(4+bl)*n {
			df.SetTruncated()
			return fmt.Errorf("%w: multi-TID block ack with %d TIDs in %d bytes",
				ErrTruncated, n, len(data))
		}
		for i := 0; i < n; i++ {
			perTid := binary.LittleEndian.Uint16(data[offset : offset+2])
			ssc := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
			bitmap := make([]byte, bl)
			copy(bitmap, data[offset+4:offset+4+bl])
			decoded.Tids = append(decoded.Tids, TidInfo{
				Tid:         uint8(perTid >> baCtrlTidShift & 0x0f),
				StartingSeq: ssc >> 4,
				Bitmap:      bitmap,
			})
			offset += 4 + bl
		}
	} else {
		if len(data) < 4+bl {
			df.SetTruncated()
			return fmt.Errorf("%w: %s block ack of %d bytes", ErrTruncated, variant, len(data))
		}
		decoded.Tid = tidInfo
		decoded.StartingSeq = binary.LittleEndian.Uint16(data[2:4]) >> 4
		decoded.Bitmap = make([]byte, bl)
		copy(decoded.Bitmap, data[4:4+bl])
		offset = 4 + bl
	}
	decoded.BaseLayer = layers.BaseLayer{Contents: data[:offset], Payload: data[offset:]}
	*b = decoded
	return nil
}

func (b *BlockAck) SerializeTo(buf gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	data, err := buf.PrependBytes(b.Size())
	if err != nil {
		return err
	}
	tidInfo := b.Tid
	if b.Variant == MultiTidBlockAck {
		if len(b.Tids) == 0 {
			return fmt.Errorf("%w: multi-TID block ack without TIDs", ErrBadVariant)
		}
		tidInfo = uint8(len(b.Tids) - 1)
	}
	binary.LittleEndian.PutUint16(data[0:2], packBaControl(b.AckPolicy, b.Variant, tidInfo))
	bl := b.Variant.bitmapLen()
	offset := 2
	if b.Variant == MultiTidBlockAck {
		for _, ti := range b.Tids {
			binary.LittleEndian.PutUint16(data[offset:offset+2], uint16(ti.Tid&0x0f)<<baCtrlTidShift)
			binary.LittleEndian.PutUint16(data[offset+2:offset+4], ti.StartingSeq<<4)
			copy(data[offset+4:offset+4+bl], ti.Bitmap)
			offset += 4 + bl
		}
		return nil
	}
	binary.LittleEndian.PutUint16(data[2:4], b.StartingSeq<<4)
	copy(data[4:4+bl], b.Bitmap)
	return nil
}
