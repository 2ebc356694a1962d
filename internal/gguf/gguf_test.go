package gguf_test

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/chaterr"
	"localchat/internal/gguf"
	"localchat/internal/gguf/gguftest"
)

func TestRead_Metadata(t *testing.T) {
	data := gguftest.Encode(291, []gguftest.KV{
		{Key: "general.architecture", Value: "llama"},
		{Key: "general.name", Value: "TinyLlama"},
		{Key: "llama.context_length", Value: uint32(2048)},
		{Key: "general.file_type", Value: int32(15)},
		{Key: "llama.rope.freq_base", Value: float32(10000)},
		{Key: "tokenizer.ggml.add_bos_token", Value: true},
		{Key: "tokenizer.ggml.tokens", Value: []string{"<s>", "</s>", "hello"}},
		{Key: "tokenizer.chat_template", Value: "{% for m in messages %}{{ m.content }}{% endfor %}"},
	}, 128)

	f, err := gguf.Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), f.Version)
	assert.Equal(t, binary.LittleEndian, f.ByteOrder)
	assert.Equal(t, uint64(291), f.TensorCount)
	assert.Equal(t, "llama", f.Architecture())
	assert.Equal(t, "TinyLlama", f.ModelName())
	assert.Equal(t, uint64(2048), f.ContextLength())
	assert.Contains(t, f.ChatTemplate(), "messages")
	assert.Len(t, f.Keys, 8)
	assert.Equal(t, "general.architecture", f.Keys[0])

	ft, ok := f.Uint(gguf.KeyFileType)
	assert.True(t, ok)
	assert.Equal(t, uint64(15), ft)

	tokens := f.KV["tokenizer.ggml.tokens"]
	assert.Equal(t, gguf.TypeArray, tokens.Type)
	assert.Equal(t, gguf.TypeString, tokens.ElemType)
	assert.Equal(t, uint64(3), tokens.Len)
	assert.Equal(t, []any{"<s>", "</s>", "hello"}, tokens.Elems)
	assert.False(t, tokens.Truncated)

	freq := f.KV["llama.rope.freq_base"]
	assert.InDelta(t, 10000.0, freq.Scalar.(float64), 0.001)
	assert.Equal(t, true, f.KV["tokenizer.ggml.add_bos_token"].Scalar)
}

func TestRead_LongArraysKeepOnlyLength(t *testing.T) {
	vocab := make([]uint32, 5000)
	data := gguftest.Encode(0, []gguftest.KV{{Key: "tokenizer.ggml.token_type", Value: vocab}}, 0)
	f, err := gguf.Read(bytes.NewReader(data))
	require.NoError(t, err)
	v := f.KV["tokenizer.ggml.token_type"]
	assert.Equal(t, uint64(5000), v.Len)
	assert.Nil(t, v.Elems)
	assert.True(t, v.Truncated)
}

func TestRead_Failures(t *testing.T) {
	valid := gguftest.Encode(1, gguftest.Llama("m"), 0)

	badMagic := append([]byte("GGML"), valid[4:]...)
	badVersion := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 99)
	hugeKV := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint64(hugeKV[16:24], 1<<40)
	hugeTensors := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint64(hugeTensors[8:16], 1<<40)

	cases := map[string][]byte{
		"empty":        {},
		"short magic":  []byte("GG"),
		"bad magic":    badMagic,
		"bad version":  badVersion,
		"huge kv":      hugeKV,
		"huge tensors": hugeTensors,
		"truncated":    valid[:len(valid)-3],
		"text file":    []byte("hello, this is definitely not a model\n"),
	}
	for name, data := range cases {
		_, err := gguf.Read(bytes.NewReader(data))
		require.Error(t, err, name)
		assert.True(t, chaterr.Is(err, chaterr.ParseFailure), "%s: %v", name, err)
	}
}

func TestRead_UnknownValueType(t *testing.T) {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("GGUF")
	_ = binary.Write(&b, le, uint32(3))
	_ = binary.Write(&b, le, uint64(0))
	_ = binary.Write(&b, le, uint64(1))
	_ = binary.Write(&b, le, uint64(1))
	b.WriteString("k")
	_ = binary.Write(&b, le, uint32(42))
	_, err := gguf.Read(&b)
	assert.True(t, chaterr.Is(err, chaterr.ParseFailure), "%v", err)
}

func TestRead_Version1(t *testing.T) {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("GGUF")
	_ = binary.Write(&b, le, uint32(1))
	_ = binary.Write(&b, le, uint32(7))
	_ = binary.Write(&b, le, uint32(1))
	_ = binary.Write(&b, le, uint32(len("general.architecture")))
	b.WriteString("general.architecture")
	_ = binary.Write(&b, le, uint32(8))
	_ = binary.Write(&b, le, uint32(5))
	b.WriteString("gemma")

	f, err := gguf.Read(&b)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.Version)
	assert.Equal(t, uint64(7), f.TensorCount)
	assert.Equal(t, "gemma", f.Architecture())
	assert.Equal(t, uint64(0), f.ContextLength())
}

func TestRead_BigEndian(t *testing.T) {
	var b bytes.Buffer
	be := binary.BigEndian
	b.WriteString("GGUF")
	_ = binary.Write(&b, be, uint32(3))
	_ = binary.Write(&b, be, uint64(2))
	_ = binary.Write(&b, be, uint64(1))
	_ = binary.Write(&b, be, uint64(len("general.name")))
	b.WriteString("general.name")
	_ = binary.Write(&b, be, uint32(8))
	_ = binary.Write(&b, be, uint64(2))
	b.WriteString("be")

	f, err := gguf.Read(&b)
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, f.ByteOrder)
	assert.Equal(t, uint64(2), f.TensorCount)
	assert.Equal(t, "be", f.ModelName())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	p := gguftest.WriteFile(t, dir, "m.gguf", gguftest.Llama("disk"))
	f, err := gguf.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "disk", f.ModelName())

	_, err = gguf.ReadFile(filepath.Join(dir, "missing.gguf"))
	assert.Error(t, err)
}
