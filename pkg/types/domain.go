package types

// ModelFile is a candidate model file in the models directory.
type ModelFile struct {
	// File name including extension.
	// example: tinyllama-1.1b-chat.Q4_K_M.gguf
	Name string `json:"name" example:"tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// File size in bytes.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
	// Human-readable size.
	// example: 637.81 MB
	DisplaySize string `json:"display_size" example:"637.81 MB"`
	// Absolute path on disk.
	// example: /home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// Last modification time (unix seconds).
	// example: 1700000000
	ModTime int64 `json:"mod_time_unix" example:"1700000000"`
}

// Turn is one chat message.
type Turn struct {
	// Speaker: user or assistant.
	// example: assistant
	Role string `json:"role" example:"assistant"`
	// Message text.
	// example: Hello! How can I help?
	Text string `json:"text" example:"Hello! How can I help?"`
	// Position in the conversation, starting at 1.
	// example: 2
	Seq uint64 `json:"seq" example:"2"`
	// Append time (unix milliseconds).
	// example: 1700000000123
	At int64 `json:"at_unix_ms" example:"1700000000123"`
}

// LoadedModel describes the artifact held by the session.
type LoadedModel struct {
	// example: tinyllama-1.1b-chat.Q4_K_M.gguf
	Name string `json:"name" example:"tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// Size in bytes, omitted when unknown.
	// example: 668788096
	SizeBytes *int64 `json:"size_bytes,omitempty" example:"668788096"`
	// example: 637.81 MB
	DisplaySize string `json:"display_size" example:"637.81 MB"`
	// example: /home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf
	Locator string `json:"locator" example:"/home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// Model family from the file header.
	// example: llama
	Architecture string `json:"architecture,omitempty" example:"llama"`
	// Name embedded in the file header.
	// example: TinyLlama
	ModelName string `json:"model_name,omitempty" example:"TinyLlama"`
	// Prompt format in use.
	// example: chatml
	Template string `json:"template,omitempty" example:"chatml"`
	// Training context length from the header.
	// example: 2048
	ContextLength uint64 `json:"context_length,omitempty" example:"2048"`
}
