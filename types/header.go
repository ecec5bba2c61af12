package types

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the encoded size of an ImageHeader: four int32 values.
const HeaderSize = 16

// MaxImageBytes is the largest uncompressed image a header may announce.
// It equals the relay's frame payload limit, so a raw fallback always fits.
const MaxImageBytes = 256 * 1024 * 1024

// ImageHeader precedes every relayed frame.
// Encoded as hasImage, width, height, components; big-endian int32 each.
type ImageHeader struct {
	HasImage   bool
	Width      int32
	Height     int32
	Components int32
}

// PayloadSize is the uncompressed byte count the header announces.
func (h ImageHeader) PayloadSize() int {
	if !h.HasImage {
		return 0
	}
	return int(h.Width) * int(h.Height) * int(h.Components)
}

// MarshalBinary encodes the header into exactly HeaderSize bytes.
func (h ImageHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	var has int32
	if h.HasImage {
		has = 1
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(has))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.Width))
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.Height))
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.Components))
	return buf, nil
}

// UnmarshalBinary decodes a header. Any non-zero hasImage value means true.
func (h *ImageHeader) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("image header must be %d bytes, got %d", HeaderSize, len(data))
	}
	h.HasImage = int32(binary.BigEndian.Uint32(data[0:4])) != 0
	h.Width = int32(binary.BigEndian.Uint32(data[4:8]))
	h.Height = int32(binary.BigEndian.Uint32(data[8:12]))
	h.Components = int32(binary.BigEndian.Uint32(data[12:16]))
	if !h.HasImage {
		return nil
	}
	if h.Width < 0 || h.Height < 0 || h.Components < 1 || h.Components > 4 {
		return fmt.Errorf("image header describes invalid image %dx%dx%d", h.Width, h.Height, h.Components)
	}
	// Width*Height fits in int64; multiplying by Components may not.
	if pixels := int64(h.Width) * int64(h.Height); pixels > MaxImageBytes/int64(h.Components) {
		return fmt.Errorf("image header describes %dx%dx%d image, larger than %d bytes",
			h.Width, h.Height, h.Components, MaxImageBytes)
	}
	return nil
}
