// Package statecodec serializes a fitted lookup model to a self-describing
// byte stream and back.
//
// Format overview (little endian):
//
//	[4B magic "MLPT"] [4B version] [1B body encoding]
//	encoding 0, binary:
//	  [4B count]
//	  count × ([4B keyLen][key][4B valueLen][value])   ascending key order
//	encoding 1, msgpack:
//	  msgpack map of string to string
//
// Anything after the body is rejected.
package statecodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/mlptask/pkg/lookup"
)

// ErrCorruptState is returned when a stream is not a valid encoding.
var ErrCorruptState = errors.New("statecodec: corrupt state")

var magic = [4]byte{'M', 'L', 'P', 'T'}

// Version is the current format version.
const Version uint32 = 1

// maxFieldLen bounds a single key or value so that a corrupt length
// cannot trigger a huge allocation.
const maxFieldLen = 64 << 20

// Encoding selects the body layout.
type Encoding uint8

const (
	EncodingBinary  Encoding = 0
	EncodingMsgpack Encoding = 1
)

func (e Encoding) String() string {
	switch e {
	case EncodingBinary:
		return "binary"
	case EncodingMsgpack:
		return "msgpack"
	}
	return fmt.Sprintf("Encoding(%d)", uint8(e))
}

// ParseEncoding maps "binary" or "msgpack" to an Encoding. The empty
// string selects binary.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "binary":
		return EncodingBinary, nil
	case "msgpack":
		return EncodingMsgpack, nil
	}
	return 0, fmt.Errorf("statecodec: unknown encoding %q", s)
}

// Option configures Encode.
type Option func(*options)

type options struct {
	enc Encoding
}

// WithEncoding selects the body encoding. The default is binary.
func WithEncoding(e Encoding) Option {
	return func(o *options) { o.enc = e }
}

// Encode writes m to w.
func Encode(w io.Writer, m *lookup.Model, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	if _, err := bw.Write(magic[:]); err != nil {
		return fmt.Errorf("statecodec: write magic: %w", err)
	}
	if err := binary.Write(bw, le, Version); err != nil {
		return fmt.Errorf("statecodec: write version: %w", err)
	}
	if err := bw.WriteByte(byte(o.enc)); err != nil {
		return fmt.Errorf("statecodec: write encoding: %w", err)
	}

	switch o.enc {
	case EncodingBinary:
		if err := encodeBinary(bw, m); err != nil {
			return err
		}
	case EncodingMsgpack:
		data := make(map[string]string, m.Len())
		for k, v := range m.All() {
			data[k] = v
		}
		enc := msgpack.NewEncoder(bw)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("statecodec: write msgpack body: %w", err)
		}
	default:
		return fmt.Errorf("statecodec: unknown encoding %d", o.enc)
	}
	return bw.Flush()
}

func encodeBinary(bw *bufio.Writer, m *lookup.Model) error {
	le := binary.LittleEndian
	if err := binary.Write(bw, le, uint32(m.Len())); err != nil {
		return fmt.Errorf("statecodec: write count: %w", err)
	}
	for k, v := range m.All() {
		for _, field := range []string{k, v} {
			if len(field) > maxFieldLen {
				return fmt.Errorf("statecodec: field of %d bytes exceeds limit", len(field))
			}
			if err := binary.Write(bw, le, uint32(len(field))); err != nil {
				return err
			}
			if _, err := bw.WriteString(field); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode reads a model written by Encode. Malformed input yields an error
// wrapping ErrCorruptState; read failures of the underlying stream are
// returned as they are.
func Decode(r io.Reader) (*lookup.Model, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	var got [4]byte
	if _, err := io.ReadFull(br, got[:]); err != nil {
		return nil, corrupt("read magic", err)
	}
	if got != magic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorruptState, got[:])
	}

	var version uint32
	if err := binary.Read(br, le, &version); err != nil {
		return nil, corrupt("read version", err)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d (want %d)", ErrCorruptState, version, Version)
	}

	encByte, err := br.ReadByte()
	if err != nil {
		return nil, corrupt("read encoding", err)
	}

	var data map[string]string
	switch Encoding(encByte) {
	case EncodingBinary:
		data, err = decodeBinary(br)
	case EncodingMsgpack:
		data, err = decodeMsgpack(br)
	default:
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrCorruptState, encByte)
	}
	if err != nil {
		return nil, err
	}

	if _, err := br.ReadByte(); err == nil {
		return nil, fmt.Errorf("%w: trailing data after body", ErrCorruptState)
	} else if err != io.EOF {
		return nil, err
	}
	return lookup.FromMap(data), nil
}

func decodeBinary(br *bufio.Reader) (map[string]string, error) {
	le := binary.LittleEndian
	var count uint32
	if err := binary.Read(br, le, &count); err != nil {
		return nil, corrupt("read count", err)
	}

	readField := func() (string, error) {
		var n uint32
		if err := binary.Read(br, le, &n); err != nil {
			return "", corrupt("read length", err)
		}
		if n > maxFieldLen {
			return "", fmt.Errorf("%w: field length %d exceeds limit", ErrCorruptState, n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return "", corrupt("read field", err)
		}
		return string(buf), nil
	}

	// count comes from the stream; do not trust it for preallocation.
	data := make(map[string]string, min(count, 1024))
	for i := uint32(0); i < count; i++ {
		k, err := readField()
		if err != nil {
			return nil, err
		}
		v, err := readField()
		if err != nil {
			return nil, err
		}
		if _, dup := data[k]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrCorruptState, k)
		}
		data[k] = v
	}
	return data, nil
}

func decodeMsgpack(br *bufio.Reader) (map[string]string, error) {
	var data map[string]string
	if err := msgpack.NewDecoder(br).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: read msgpack body: %v", ErrCorruptState, err)
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

// corrupt classifies a read error: a short stream is corruption, anything
// else is an I/O failure of the underlying reader.
func corrupt(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: truncated", ErrCorruptState, op)
	}
	return fmt.Errorf("statecodec: %s: %w", op, err)
}

// Marshal encodes m into a byte slice.
func Marshal(m *lookup.Model, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a model from data.
func Unmarshal(data []byte) (*lookup.Model, error) {
	return Decode(bytes.NewReader(data))
}
