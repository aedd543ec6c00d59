package statecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/haivivi/mlptask/pkg/lookup"
)

var encodings = []Encoding{EncodingBinary, EncodingMsgpack}

func TestRoundTrip(t *testing.T) {
	models := map[string]*lookup.Model{
		"empty":   lookup.New(),
		"single":  lookup.Build([]string{"hello"}),
		"dups":    lookup.Build([]string{"a", "a", "a"}),
		"unicode": lookup.Build([]string{"héllo", "世界", "", "line\nbreak"}),
		"custom":  lookup.FromMap(map[string]string{"x": "1", "": "empty key"}),
	}
	for _, enc := range encodings {
		for name, m := range models {
			t.Run(enc.String()+"/"+name, func(t *testing.T) {
				data, err := Marshal(m, WithEncoding(enc))
				if err != nil {
					t.Fatal(err)
				}
				got, err := Unmarshal(data)
				if err != nil {
					t.Fatal(err)
				}
				if !got.Equal(m) {
					t.Fatal("decoded model differs from original")
				}
			})
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	m := lookup.Build(strings.Fields("the quick brown fox jumps over the lazy dog"))
	for _, enc := range encodings {
		a, err := Marshal(m, WithEncoding(enc))
		if err != nil {
			t.Fatal(err)
		}
		b, err := Marshal(m, WithEncoding(enc))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("%s encoding is not deterministic", enc)
		}
	}
}

func TestHeader(t *testing.T) {
	data, err := Marshal(lookup.Build([]string{"a"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "MLPT" {
		t.Fatalf("magic = %q", data[:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != Version {
		t.Fatalf("version = %d", v)
	}
	if Encoding(data[8]) != EncodingBinary {
		t.Fatalf("encoding = %d", data[8])
	}
}

func TestDecodeCorrupt(t *testing.T) {
	valid, err := Marshal(lookup.Build([]string{"a", "b"}))
	if err != nil {
		t.Fatal(err)
	}
	validMsgpack, err := Marshal(lookup.Build([]string{"a"}), WithEncoding(EncodingMsgpack))
	if err != nil {
		t.Fatal(err)
	}

	withVersion := func(v uint32) []byte {
		b := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(b[4:8], v)
		return b
	}
	withByte := func(src []byte, i int, v byte) []byte {
		b := bytes.Clone(src)
		b[i] = v
		return b
	}
	hugeLen := bytes.Clone(valid[:13])
	hugeLen = binary.LittleEndian.AppendUint32(hugeLen, maxFieldLen+1)

	dupKey := append(bytes.Clone(valid[:9]), 2, 0, 0, 0)
	for range 2 {
		dupKey = append(dupKey, 1, 0, 0, 0, '0', 1, 0, 0, 0, 'x')
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"pickle-ish", []byte("\x80\x04\x95garbage")},
		{"short magic", valid[:2]},
		{"bad magic", withByte(valid, 0, 'X')},
		{"future version", withVersion(2)},
		{"no encoding", valid[:8]},
		{"unknown encoding", withByte(valid, 8, 7)},
		{"truncated count", valid[:11]},
		{"truncated body", valid[:len(valid)-1]},
		{"trailing data", append(bytes.Clone(valid), 0)},
		{"huge length", hugeLen},
		{"duplicate key", dupKey},
		{"bad msgpack", append(bytes.Clone(validMsgpack[:9]), 0xc1)},
		{"msgpack wrong type", append(bytes.Clone(validMsgpack[:9]), 0x92, 0x01, 0x02)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if !errors.Is(err, ErrCorruptState) {
				t.Fatalf("expected ErrCorruptState, got %v", err)
			}
		})
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDecodeReadErrorIsNotCorruption(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Decode(failingReader{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
	if errors.Is(err, ErrCorruptState) {
		t.Fatal("transport failures must not be reported as corruption")
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": EncodingBinary, "binary": EncodingBinary, "msgpack": EncodingMsgpack} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Fatalf("ParseEncoding(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseEncoding("pickle"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestEncodeUnknownEncoding(t *testing.T) {
	if _, err := Marshal(lookup.New(), WithEncoding(Encoding(9))); err == nil {
		t.Fatal("expected error")
	}
}
