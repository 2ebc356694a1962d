// Package gguftest builds small GGUF files for tests.
package gguftest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// KV is an ordered metadata entry. Supported value types: string, bool,
// uint32, int32, uint64, int64, float32, float64, []string, []uint32.
type KV struct {
	Key   string
	Value any
}

// Encode returns a version-3 little-endian GGUF header with the given
// metadata and tensor count, followed by pad zero bytes.
func Encode(tensors uint64, kvs []KV, pad int) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("GGUF")
	_ = binary.Write(&b, le, uint32(3))
	_ = binary.Write(&b, le, tensors)
	_ = binary.Write(&b, le, uint64(len(kvs)))
	for _, kv := range kvs {
		writeString(&b, kv.Key)
		switch v := kv.Value.(type) {
		case string:
			_ = binary.Write(&b, le, uint32(8))
			writeString(&b, v)
		case bool:
			_ = binary.Write(&b, le, uint32(7))
			if v {
				b.WriteByte(1)
			} else {
				b.WriteByte(0)
			}
		case uint32:
			_ = binary.Write(&b, le, uint32(4))
			_ = binary.Write(&b, le, v)
		case int32:
			_ = binary.Write(&b, le, uint32(5))
			_ = binary.Write(&b, le, v)
		case float32:
			_ = binary.Write(&b, le, uint32(6))
			_ = binary.Write(&b, le, math.Float32bits(v))
		case uint64:
			_ = binary.Write(&b, le, uint32(10))
			_ = binary.Write(&b, le, v)
		case int64:
			_ = binary.Write(&b, le, uint32(11))
			_ = binary.Write(&b, le, v)
		case float64:
			_ = binary.Write(&b, le, uint32(12))
			_ = binary.Write(&b, le, math.Float64bits(v))
		case []string:
			_ = binary.Write(&b, le, uint32(9))
			_ = binary.Write(&b, le, uint32(8))
			_ = binary.Write(&b, le, uint64(len(v)))
			for _, s := range v {
				writeString(&b, s)
			}
		case []uint32:
			_ = binary.Write(&b, le, uint32(9))
			_ = binary.Write(&b, le, uint32(4))
			_ = binary.Write(&b, le, uint64(len(v)))
			for _, n := range v {
				_ = binary.Write(&b, le, n)
			}
		default:
			panic("gguftest: unsupported value type")
		}
	}
	if pad > 0 {
		b.Write(make([]byte, pad))
	}
	return b.Bytes()
}

// Llama returns typical metadata for a llama-family model.
func Llama(name string) []KV {
	return []KV{
		{Key: "general.architecture", Value: "llama"},
		{Key: "general.name", Value: name},
		{Key: "llama.context_length", Value: uint32(4096)},
	}
}

// WriteFile writes a GGUF file into dir and returns its path.
func WriteFile(t testing.TB, dir, name string, kvs []KV) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Encode(0, kvs, 0), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func writeString(b *bytes.Buffer, s string) {
	_ = binary.Write(b, binary.LittleEndian, uint64(len(s)))
	b.WriteString(s)
}
