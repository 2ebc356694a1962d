package gguf

// Well-known metadata keys.
const (
	KeyArchitecture  = "general.architecture"
	KeyName          = "general.name"
	KeyFileType      = "general.file_type"
	KeyChatTemplate  = "tokenizer.chat_template"
	suffixContextLen = ".context_length"
)

// String returns a string-typed value.
func (f *File) String(key string) (string, bool) {
	v, ok := f.KV[key]
	if !ok || v.Type != TypeString {
		return "", false
	}
	s, ok := v.Scalar.(string)
	return s, ok
}

// Uint returns an unsigned or non-negative signed integer value.
func (f *File) Uint(key string) (uint64, bool) {
	v, ok := f.KV[key]
	if !ok {
		return 0, false
	}
	switch n := v.Scalar.(type) {
	case uint64:
		return n, true
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return 0, false
}

// Architecture is the model family, e.g. "llama", "gemma", "qwen2".
func (f *File) Architecture() string {
	s, _ := f.String(KeyArchitecture)
	return s
}

// ModelName is the human-readable name embedded by the converter.
func (f *File) ModelName() string {
	s, _ := f.String(KeyName)
	return s
}

// ContextLength is the training context size, or 0 when absent.
func (f *File) ContextLength() uint64 {
	arch := f.Architecture()
	if arch == "" {
		return 0
	}
	n, _ := f.Uint(arch + suffixContextLen)
	return n
}

// ChatTemplate returns the embedded Jinja chat template, if any.
func (f *File) ChatTemplate() string {
	s, _ := f.String(KeyChatTemplate)
	return s
}
