package compositor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pithecene-io/mural/ipc"
	"github.com/pithecene-io/mural/types"
)

// fragmentMessage is the wire form of a Partial or a finished tile.
type fragmentMessage struct {
	Width      int    `msgpack:"w"`
	Height     int    `msgpack:"h"`
	Components int    `msgpack:"c"`
	Color      []byte `msgpack:"color"`
	// Depth is little-endian float32, absent when the fragment has none.
	Depth []byte `msgpack:"depth,omitempty"`
}

func encodeFragment(p Partial) ([]byte, error) {
	msg := fragmentMessage{
		Width:      p.Color.Width,
		Height:     p.Color.Height,
		Components: p.Color.Components,
		Color:      p.Color.Pixels,
	}
	if p.Depth != nil {
		msg.Depth = make([]byte, 4*len(p.Depth))
		for i, d := range p.Depth {
			binary.LittleEndian.PutUint32(msg.Depth[4*i:], math.Float32bits(d))
		}
	}
	return ipc.EncodeMessage(msg)
}

func decodeFragment(payload []byte) (Partial, error) {
	var msg fragmentMessage
	if err := ipc.DecodeMessage(payload, &msg); err != nil {
		return Partial{}, err
	}
	color, err := types.WrapRawImage(msg.Width, msg.Height, msg.Components, msg.Color)
	if err != nil {
		return Partial{}, fmt.Errorf("%w: %v", ErrFragment, err)
	}
	p := Partial{Color: color}
	if len(msg.Depth) > 0 {
		if len(msg.Depth) != 4*msg.Width*msg.Height {
			return Partial{}, fmt.Errorf("%w: depth holds %d bytes for %dx%d", ErrFragment, len(msg.Depth), msg.Width, msg.Height)
		}
		p.Depth = make([]float32, msg.Width*msg.Height)
		for i := range p.Depth {
			p.Depth[i] = math.Float32frombits(binary.LittleEndian.Uint32(msg.Depth[4*i:]))
		}
	}
	return p, nil
}
