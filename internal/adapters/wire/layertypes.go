// Package wire implements the bit-exact control-frame codecs of the engine:
// Block Ack Request, Block Ack and the HE Trigger frame family. The types
// follow the gopacket layer conventions (DecodeFromBytes / SerializeTo) so
// they compose with the rest of a capture or injection pipeline.
package wire

import (
	"errors"

	"github.com/google/gopacket"
)

var (
	ErrTruncated   = errors.New("wire: truncated frame")
	ErrBadRuCode   = errors.New("wire: undefined RU allocation code")
	ErrBadVariant  = errors.New("wire: undefined block ack variant")
	ErrBadTrigType = errors.New("wire: undefined trigger type")
)

var (
	LayerTypeBlockAckRequest = gopacket.RegisterLayerType(1871, gopacket.LayerTypeMetadata{
		Name:    "BlockAckRequest",
		Decoder: gopacket.DecodeFunc(decodeBlockAckRequest),
	})
	LayerTypeBlockAck = gopacket.RegisterLayerType(1872, gopacket.LayerTypeMetadata{
		Name:    "BlockAck",
		Decoder: gopacket.DecodeFunc(decodeBlockAck),
	})
	LayerTypeTrigger = gopacket.RegisterLayerType(1873, gopacket.LayerTypeMetadata{
		Name:    "Trigger",
		Decoder: gopacket.DecodeFunc(decodeTrigger),
	})
)

func decodeBlockAckRequest(data []byte, p gopacket.PacketBuilder) error {
	d := &BlockAckRequest{}
	if err := d.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(d)
	return nil
}

func decodeBlockAck(data []byte, p gopacket.PacketBuilder) error {
	d := &BlockAck{}
	if err := d.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(d)
	return nil
}

func decodeTrigger(data []byte, p gopacket.PacketBuilder) error {
	d := &Trigger{}
	if err := d.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(d)
	return nil
}
