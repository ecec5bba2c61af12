// Package codec implements the pluggable image compressors used by the relay.
//
// Every codec is self-describing: its configuration serializes to a single
// line "<name> <lossLess:0|1> [params...]" and can be restored from the same
// line. Codecs are not reentrant; one compress or decompress call may be in
// flight per instance.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for codec failures.
var (
	// ErrInputUnset is returned when Compress or Decompress gets a nil input.
	ErrInputUnset = errors.New("codec: input buffer unset")
	// ErrOutputUnset is returned when Decompress gets a nil target buffer.
	ErrOutputUnset = errors.New("codec: output buffer unset")
	// ErrCorrupt is returned when a compressed stream cannot be decoded into
	// the target buffer.
	ErrCorrupt = errors.New("codec: corrupt stream")
	// ErrComponents is returned for component counts outside 1-4.
	ErrComponents = errors.New("codec: components per pixel must be 1-4")
	// ErrResolutionRequired is returned by codecs that need SetImageResolution
	// before use.
	ErrResolutionRequired = errors.New("codec: image resolution not set")
	// ErrUnavailable is returned when a codec has no runtime backend.
	ErrUnavailable = errors.New("codec: backend unavailable")
)

// Compressor is the contract every codec implements.
type Compressor interface {
	// Name is the codec name, the leading token of its configuration.
	Name() string
	// LossLess reports the configured loss-less mode.
	LossLess() bool
	// SetLossLess changes the configured loss-less mode.
	SetLossLess(lossLess bool)
	// SetImageResolution announces frame geometry. Most codecs ignore it.
	SetImageResolution(width, height int)
	// Compress encodes in. lossLess overrides the configured mode for this
	// call only. On error the caller must use the original bytes.
	Compress(in []byte, components int, lossLess bool) ([]byte, error)
	// Decompress decodes in into out, which is never resized.
	Decompress(in, out []byte) error
	// SaveConfiguration serializes the codec configuration.
	SaveConfiguration() string
	// RestoreConfiguration applies a configuration line and returns the
	// unconsumed remainder. ok is false, and nothing is applied, when the
	// line does not belong to this codec or does not parse.
	RestoreConfiguration(config string) (rest string, ok bool)
}

// base carries the fields every codec shares.
type base struct {
	name     string
	lossLess bool
}

func (b *base) Name() string              { return b.name }
func (b *base) LossLess() bool            { return b.lossLess }
func (b *base) SetLossLess(lossLess bool) { b.lossLess = lossLess }
func (b *base) SetImageResolution(_, _ int) {}

// saveBase renders "<name> <0|1>".
func (b *base) saveBase() string {
	return fmt.Sprintf("%s %s", b.name, boolToken(b.lossLess))
}

// parseBase checks the name token and reads the loss-less flag without
// applying it.
func (b *base) parseBase(config string) (lossLess bool, rest string, ok bool) {
	name, rest := nextToken(config)
	if name != b.name {
		return false, "", false
	}
	flag, rest := nextToken(rest)
	switch flag {
	case "0":
		return false, rest, true
	case "1":
		return true, rest, true
	default:
		return false, "", false
	}
}

// nextToken splits off the first whitespace-delimited token.
func nextToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// nextInt reads an integer token within [lo, hi].
func nextInt(s string, lo, hi int) (int, string, bool) {
	tok, rest := nextToken(s)
	v, err := strconv.Atoi(tok)
	if err != nil || v < lo || v > hi {
		return 0, "", false
	}
	return v, rest, true
}

func boolToken(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func checkCompressArgs(in []byte, components int) error {
	if in == nil {
		return ErrInputUnset
	}
	if components < 1 || components > 4 {
		return fmt.Errorf("%w: got %d", ErrComponents, components)
	}
	return nil
}

func checkDecompressArgs(in, out []byte) error {
	if in == nil {
		return ErrInputUnset
	}
	if out == nil {
		return ErrOutputUnset
	}
	return nil
}

// colorMask keeps the high bits of a colour channel, dropping dropBits.
func colorMask(dropBits int) byte {
	if dropBits <= 0 {
		return 0xFF
	}
	return byte(0xFF << uint(dropBits))
}

// isAlphaChannel reports whether channel c of a pixel is alpha.
func isAlphaChannel(c, components int) bool {
	return components == 4 && c == 3
}
