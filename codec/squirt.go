package codec

import (
	"encoding/binary"
	"fmt"
)

// NameSquirt is the run-length codec.
const NameSquirt = "squirt"

// SquirtMaxLevel is the most aggressive squirt level.
const SquirtMaxLevel = 5

// Squirt run-length encodes pixels. In lossy mode, neighbouring pixels whose
// colour channels agree after dropping the low `level` bits extend the same
// run; the run is emitted with its first pixel unchanged, so flat regions
// reproduce exactly. Alpha always compares exactly.
//
// Stream layout: components byte, then uvarint run length + one pixel per
// run, then any trailing bytes that do not fill a pixel.
type Squirt struct {
	base
	level int
}

// NewSquirt creates a squirt codec at the given level (clamped to 0-5).
func NewSquirt(level int) *Squirt {
	return &Squirt{base: base{name: NameSquirt}, level: min(max(level, 0), SquirtMaxLevel)}
}

// Level returns the configured level.
func (c *Squirt) Level() int { return c.level }

// SetLevel sets the level, clamped to 0-5.
func (c *Squirt) SetLevel(level int) { c.level = min(max(level, 0), SquirtMaxLevel) }

// Compress implements Compressor.
func (c *Squirt) Compress(in []byte, components int, lossLess bool) ([]byte, error) {
	if err := checkCompressArgs(in, components); err != nil {
		return nil, err
	}

	var masks [4]byte
	for ch := range components {
		masks[ch] = 0xFF
		if !lossLess && !isAlphaChannel(ch, components) {
			masks[ch] = colorMask(c.level)
		}
	}

	pixels := len(in) / components
	out := make([]byte, 0, 1+len(in)/8+components+binary.MaxVarintLen64)
	out = append(out, byte(components))

	var lenBuf [binary.MaxVarintLen64]byte
	for p := 0; p < pixels; {
		start := p * components
		run := 1
		for p+run < pixels && samePixel(in[start:], in[(p+run)*components:], masks[:components]) {
			run++
		}
		n := binary.PutUvarint(lenBuf[:], uint64(run))
		out = append(out, lenBuf[:n]...)
		out = append(out, in[start:start+components]...)
		p += run
	}
	out = append(out, in[pixels*components:]...)
	return out, nil
}

func samePixel(a, b, masks []byte) bool {
	for i, m := range masks {
		if a[i]&m != b[i]&m {
			return false
		}
	}
	return true
}

// Decompress implements Compressor.
func (c *Squirt) Decompress(in, out []byte) error {
	if err := checkDecompressArgs(in, out); err != nil {
		return err
	}
	if len(in) < 1 {
		return fmt.Errorf("%w: squirt stream is empty", ErrCorrupt)
	}
	components := int(in[0])
	if components < 1 || components > 4 {
		return fmt.Errorf("%w: squirt stream declares %d components", ErrCorrupt, components)
	}

	pixels := len(out) / components
	trailing := len(out) - pixels*components
	pos := 1
	for p := 0; p < pixels; {
		run, n := binary.Uvarint(in[pos:])
		if n <= 0 {
			return fmt.Errorf("%w: bad squirt run length at offset %d", ErrCorrupt, pos)
		}
		pos += n
		if run == 0 || run > uint64(pixels-p) {
			return fmt.Errorf("%w: squirt run of %d overflows %d remaining pixels", ErrCorrupt, run, pixels-p)
		}
		if pos+components > len(in) {
			return fmt.Errorf("%w: squirt stream truncated", ErrCorrupt)
		}
		px := in[pos : pos+components]
		pos += components
		for r := 0; r < int(run); r++ {
			copy(out[(p+r)*components:], px)
		}
		p += int(run)
	}
	if len(in)-pos != trailing {
		return fmt.Errorf("%w: squirt stream has %d trailing bytes, want %d", ErrCorrupt, len(in)-pos, trailing)
	}
	copy(out[pixels*components:], in[pos:])
	return nil
}

// SaveConfiguration implements Compressor.
func (c *Squirt) SaveConfiguration() string {
	return fmt.Sprintf("%s %d", c.saveBase(), c.level)
}

// RestoreConfiguration implements Compressor.
func (c *Squirt) RestoreConfiguration(config string) (string, bool) {
	lossLess, rest, ok := c.parseBase(config)
	if !ok {
		return "", false
	}
	level, rest, ok := nextInt(rest, 0, SquirtMaxLevel)
	if !ok {
		return "", false
	}
	c.lossLess = lossLess
	c.level = level
	return rest, true
}

var _ Compressor = (*Squirt)(nil)
