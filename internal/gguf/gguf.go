// Package gguf reads the header and metadata section of GGUF model files.
//
// Only the leading part of the container is parsed: magic, version, tensor
// count and the key/value metadata. Tensor descriptors and weights are left
// to the inference engine. Every count and length read from the file is
// bounded before allocation, so a hostile or truncated file fails with a
// parse error instead of exhausting memory.
package gguf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"localchat/internal/chaterr"
)

// Magic is the four-byte file prefix.
const Magic = "GGUF"

// Limits applied while parsing.
const (
	MaxKVCount     = 1 << 16
	MaxTensorCount = 1 << 24
	MaxStringLen   = 16 << 20
	MaxArrayLen    = 1 << 26
	// Arrays longer than this are skipped and only their length is kept
	// (token vocabularies run to hundreds of thousands of entries).
	keepArrayLen = 1024
)

// ValueType is the on-disk metadata value tag.
type ValueType uint32

const (
	TypeUint8 ValueType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeBool
	TypeString
	TypeArray
	TypeUint64
	TypeInt64
	TypeFloat64
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "uint8"
	case TypeInt8:
		return "int8"
	case TypeUint16:
		return "uint16"
	case TypeInt16:
		return "int16"
	case TypeUint32:
		return "uint32"
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeUint64:
		return "uint64"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// Value is one metadata entry. Scalars are stored in Scalar as uint64, int64,
// float64, bool or string. Arrays keep their element type and length; the
// elements themselves are kept only for short arrays.
type Value struct {
	Type      ValueType
	Scalar    any
	ElemType  ValueType
	Len       uint64
	Elems     []any
	Truncated bool
}

// File is the parsed header of a GGUF container.
type File struct {
	Version     uint32
	ByteOrder   binary.ByteOrder
	TensorCount uint64
	// Keys preserves the on-disk order of KV.
	Keys []string
	KV   map[string]Value
}

// ReadFile opens path and parses its header.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a GGUF header from r.
func Read(r io.Reader) (*File, error) {
	p := &parser{r: bufio.NewReaderSize(r, 64*1024), order: binary.LittleEndian}
	f, err := p.file()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, chaterr.New(chaterr.ParseFailure, "gguf", "truncated file")
		}
		return nil, err
	}
	return f, nil
}

type parser struct {
	r       *bufio.Reader
	order   binary.ByteOrder
	version uint32
	buf     [8]byte
}

func parseErr(format string, a ...any) error {
	return chaterr.New(chaterr.ParseFailure, "gguf", fmt.Sprintf(format, a...))
}

func (p *parser) file() (*File, error) {
	var magic [4]byte
	if _, err := io.ReadFull(p.r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != Magic {
		return nil, parseErr("bad magic %q", magic[:])
	}
	v, err := p.u32()
	if err != nil {
		return nil, err
	}
	// Big-endian files keep the ASCII magic but byte-swap the version.
	if v&0xFFFF == 0 {
		if sw := swap32(v); sw >= 1 && sw <= 3 {
			p.order = binary.BigEndian
			v = sw
		}
	}
	if v < 1 || v > 3 {
		return nil, parseErr("unsupported version %d", v)
	}
	p.version = v

	tensors, err := p.count()
	if err != nil {
		return nil, err
	}
	if tensors > MaxTensorCount {
		return nil, parseErr("tensor count %d exceeds limit", tensors)
	}
	kvs, err := p.count()
	if err != nil {
		return nil, err
	}
	if kvs > MaxKVCount {
		return nil, parseErr("metadata count %d exceeds limit", kvs)
	}

	f := &File{
		Version:     v,
		ByteOrder:   p.order,
		TensorCount: tensors,
		Keys:        make([]string, 0, kvs),
		KV:          make(map[string]Value, kvs),
	}
	for i := uint64(0); i < kvs; i++ {
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		t, err := p.u32()
		if err != nil {
			return nil, err
		}
		val, err := p.value(ValueType(t))
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if _, dup := f.KV[key]; !dup {
			f.Keys = append(f.Keys, key)
		}
		f.KV[key] = val
	}
	return f, nil
}

// count reads a tensor/kv/array count: uint32 in v1, uint64 afterwards.
func (p *parser) count() (uint64, error) {
	if p.version == 1 {
		v, err := p.u32()
		return uint64(v), err
	}
	return p.u64()
}

func (p *parser) value(t ValueType) (Value, error) {
	if t == TypeArray {
		et, err := p.u32()
		if err != nil {
			return Value{}, err
		}
		elem := ValueType(et)
		if elem == TypeArray {
			return Value{}, parseErr("nested arrays are not supported")
		}
		n, err := p.count()
		if err != nil {
			return Value{}, err
		}
		if n > MaxArrayLen {
			return Value{}, parseErr("array length %d exceeds limit", n)
		}
		v := Value{Type: TypeArray, ElemType: elem, Len: n}
		keep := n <= keepArrayLen
		if keep {
			v.Elems = make([]any, 0, n)
		}
		for i := uint64(0); i < n; i++ {
			s, err := p.scalar(elem)
			if err != nil {
				return Value{}, err
			}
			if keep {
				v.Elems = append(v.Elems, s)
			}
		}
		v.Truncated = !keep
		return v, nil
	}
	s, err := p.scalar(t)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: t, Scalar: s}, nil
}

func (p *parser) scalar(t ValueType) (any, error) {
	switch t {
	case TypeUint8:
		b, err := p.r.ReadByte()
		return uint64(b), err
	case TypeInt8:
		b, err := p.r.ReadByte()
		return int64(int8(b)), err
	case TypeBool:
		b, err := p.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, parseErr("invalid bool %d", b)
		}
		return b == 1, nil
	case TypeUint16:
		v, err := p.u16()
		return uint64(v), err
	case TypeInt16:
		v, err := p.u16()
		return int64(int16(v)), err
	case TypeUint32:
		v, err := p.u32()
		return uint64(v), err
	case TypeInt32:
		v, err := p.u32()
		return int64(int32(v)), err
	case TypeFloat32:
		v, err := p.u32()
		return float64(math.Float32frombits(v)), err
	case TypeUint64:
		return p.u64()
	case TypeInt64:
		v, err := p.u64()
		return int64(v), err
	case TypeFloat64:
		v, err := p.u64()
		return math.Float64frombits(v), err
	case TypeString:
		return p.str()
	}
	return nil, parseErr("unknown value type %d", uint32(t))
}

func (p *parser) str() (string, error) {
	n, err := p.count()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", parseErr("string length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(p.r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *parser) u16() (uint16, error) {
	if _, err := io.ReadFull(p.r, p.buf[:2]); err != nil {
		return 0, err
	}
	return p.order.Uint16(p.buf[:2]), nil
}

func (p *parser) u32() (uint32, error) {
	if _, err := io.ReadFull(p.r, p.buf[:4]); err != nil {
		return 0, err
	}
	return p.order.Uint32(p.buf[:4]), nil
}

func (p *parser) u64() (uint64, error) {
	if _, err := io.ReadFull(p.r, p.buf[:8]); err != nil {
		return 0, err
	}
	return p.order.Uint64(p.buf[:8]), nil
}

func swap32(v uint32) uint32 {
	return v>>24 | (v>>8)&0xFF00 | (v<<8)&0xFF0000 | v<<24
}
