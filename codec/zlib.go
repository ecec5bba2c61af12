package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// NameZlib is the deflate codec.
const NameZlib = "zlib"

// Colour-space reductions applied in lossy mode.
const (
	ColorSpaceFull  = 0 // 24-bit
	ColorSpace15Bit = 1
	ColorSpace12Bit = 2
	ColorSpace9Bit  = 3
)

var colorSpaceDropBits = [...]int{0, 3, 4, 5}

const zlibFlagStripAlpha byte = 1

// Zlib deflates pixels. In lossy mode it first reduces the colour space and,
// with stripAlpha, drops the alpha channel of 4-component images (restored as
// opaque on decompress).
//
// Stream layout: flags byte, components byte, zlib stream.
type Zlib struct {
	base
	level      int
	colorSpace int
	stripAlpha bool
}

// NewZlib creates a zlib codec at compression level 1-9.
func NewZlib(level int) *Zlib {
	return &Zlib{base: base{name: NameZlib}, level: min(max(level, 1), 9)}
}

// Level returns the deflate level.
func (c *Zlib) Level() int { return c.level }

// SetColorSpace selects the lossy colour-space reduction (0-3).
func (c *Zlib) SetColorSpace(space int) { c.colorSpace = min(max(space, 0), ColorSpace9Bit) }

// SetStripAlpha enables alpha stripping in lossy mode.
func (c *Zlib) SetStripAlpha(strip bool) { c.stripAlpha = strip }

// Compress implements Compressor.
func (c *Zlib) Compress(in []byte, components int, lossLess bool) ([]byte, error) {
	if err := checkCompressArgs(in, components); err != nil {
		return nil, err
	}

	src := in
	var flags byte
	if !lossLess {
		src = c.reduce(in, components)
		if c.stripAlpha && components == 4 && len(src)%4 == 0 {
			src = stripAlpha(src)
			flags |= zlibFlagStripAlpha
		}
	}

	var buf bytes.Buffer
	buf.WriteByte(flags)
	buf.WriteByte(byte(components))
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("zlib: new writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("zlib: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib: close: %w", err)
	}
	return buf.Bytes(), nil
}

// reduce returns a copy of in with the colour space reduced.
// Returns in itself when no reduction applies.
func (c *Zlib) reduce(in []byte, components int) []byte {
	drop := colorSpaceDropBits[c.colorSpace]
	if drop == 0 {
		return in
	}
	mask := colorMask(drop)
	out := make([]byte, len(in))
	for i, b := range in {
		if isAlphaChannel(i%components, components) {
			out[i] = b
			continue
		}
		out[i] = b & mask
	}
	return out
}

func stripAlpha(rgba []byte) []byte {
	out := make([]byte, 0, len(rgba)/4*3)
	for i := 0; i < len(rgba); i += 4 {
		out = append(out, rgba[i], rgba[i+1], rgba[i+2])
	}
	return out
}

// Decompress implements Compressor.
func (c *Zlib) Decompress(in, out []byte) error {
	if err := checkDecompressArgs(in, out); err != nil {
		return err
	}
	if len(in) < 2 {
		return fmt.Errorf("%w: zlib stream shorter than header", ErrCorrupt)
	}
	flags, components := in[0], int(in[1])

	r, err := zlib.NewReader(bytes.NewReader(in[2:]))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer func() { _ = r.Close() }()

	if flags&zlibFlagStripAlpha == 0 {
		return readExactly(r, out)
	}

	if components != 4 || len(out)%4 != 0 {
		return fmt.Errorf("%w: alpha-stripped stream does not fit a %d-byte RGBA target", ErrCorrupt, len(out))
	}
	rgb := make([]byte, len(out)/4*3)
	if err := readExactly(r, rgb); err != nil {
		return err
	}
	for p, q := 0, 0; p < len(out); p, q = p+4, q+3 {
		out[p], out[p+1], out[p+2], out[p+3] = rgb[q], rgb[q+1], rgb[q+2], 0xFF
	}
	return nil
}

// readExactly fills dst and requires the stream to end there.
func readExactly(r io.Reader, dst []byte) error {
	if _, err := io.ReadFull(r, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var extra [1]byte
	n, err := r.Read(extra[:])
	if n > 0 {
		return fmt.Errorf("%w: stream longer than %d-byte target", ErrCorrupt, len(dst))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// SaveConfiguration implements Compressor.
func (c *Zlib) SaveConfiguration() string {
	return fmt.Sprintf("%s %d %d %s", c.saveBase(), c.level, c.colorSpace, boolToken(c.stripAlpha))
}

// RestoreConfiguration implements Compressor.
func (c *Zlib) RestoreConfiguration(config string) (string, bool) {
	lossLess, rest, ok := c.parseBase(config)
	if !ok {
		return "", false
	}
	level, rest, ok := nextInt(rest, 1, 9)
	if !ok {
		return "", false
	}
	space, rest, ok := nextInt(rest, ColorSpaceFull, ColorSpace9Bit)
	if !ok {
		return "", false
	}
	strip, rest, ok := nextInt(rest, 0, 1)
	if !ok {
		return "", false
	}
	c.lossLess = lossLess
	c.level = level
	c.colorSpace = space
	c.stripAlpha = strip == 1
	return rest, true
}

var _ Compressor = (*Zlib)(nil)
