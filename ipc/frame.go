// Package ipc implements the tagged framing used between mural processes.
//
// A frame is a 4-byte big-endian payload length, a 4-byte big-endian tag and
// the payload. Control messages (handshakes) are msgpack-encoded payloads;
// image headers and pixel payloads travel as raw bytes.
package ipc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// TagSize is the size of the tag field in bytes.
	TagSize = 4
	// FrameHeaderSize is the length prefix plus the tag.
	FrameHeaderSize = LengthPrefixSize + TagSize
	// MaxPayloadSize is the maximum payload size (256 MiB), enough for an
	// uncompressed 8K RGBA frame.
	MaxPayloadSize = 256 * 1024 * 1024
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a payload exceeding MaxPayloadSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorTag indicates a frame whose tag is not the one expected.
	// The two ends disagree about message order.
	FrameErrorTag
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorTag:
		return "tag_mismatch"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError represents a frame error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot be used after this error.
// Partial, oversized and out-of-order frames are fatal.
func (e *FrameError) IsFatal() bool {
	return e.Kind != FrameErrorDecode
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// Frame is one tagged message.
type Frame struct {
	Tag     int32
	Payload []byte
}

// FrameEncoder writes tagged frames to a stream. Not safe for concurrent use.
type FrameEncoder struct {
	writer *bufio.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: bufio.NewWriterSize(w, 64*1024)}
}

// WriteFrame writes and flushes one frame.
func (e *FrameEncoder) WriteFrame(tag int32, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	var header [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:LengthPrefixSize], uint32(len(payload)))
	binary.BigEndian.PutUint32(header[LengthPrefixSize:], uint32(tag))
	if _, err := e.writer.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := e.writer.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

// FrameDecoder decodes tagged frames from a stream.
type FrameDecoder struct {
	reader *bufio.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// ReadFrame reads a single frame from the stream.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() (Frame, error) {
	var header [FrameHeaderSize]byte
	_, err := io.ReadFull(d.reader, header[:])
	if err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read frame header",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(header[:LengthPrefixSize])
	tag := int32(binary.BigEndian.Uint32(header[LengthPrefixSize:]))

	if payloadSize > MaxPayloadSize {
		return Frame{}, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return Frame{}, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return Frame{Tag: tag, Payload: payload}, nil
}

// ReadTagged reads the next frame and requires it to carry tag.
func (d *FrameDecoder) ReadTagged(tag int32) ([]byte, error) {
	frame, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	if err := CheckTag(frame.Tag, tag); err != nil {
		return nil, err
	}
	return frame.Payload, nil
}

// CheckTag returns a fatal FrameError when got differs from want.
func CheckTag(got, want int32) error {
	if got == want {
		return nil
	}
	return &FrameError{
		Kind: FrameErrorTag,
		Msg:  fmt.Sprintf("received tag %d, expected %d", got, want),
	}
}

// EncodeMessage msgpack-encodes a control message.
func EncodeMessage(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage decodes a msgpack control message into v.
func DecodeMessage(payload []byte, v any) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("failed to decode %T", v),
			Err:  err,
		}
	}
	return nil
}
