package types

// LoadRequest selects and loads a model.
type LoadRequest struct {
	// File name; must end in .gguf (any case).
	// example: tinyllama-1.1b-chat.Q4_K_M.gguf
	Name string `json:"name" example:"tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// Optional size in bytes as reported by the picker.
	// example: 668788096
	SizeBytes *int64 `json:"size_bytes,omitempty" example:"668788096"`
	// Optional path to the bytes. When empty the name is looked up in the models directory.
	// example: /home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf
	Locator string `json:"locator,omitempty" example:"/home/user/models/tinyllama-1.1b-chat.Q4_K_M.gguf"`
}

// ChatRequest submits one user message.
type ChatRequest struct {
	// User message; must not be blank.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
	// If true, stream NDJSON token lines followed by a final line with the turn.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Turn Turn `json:"turn"`
}

// StreamLine is one NDJSON line of a streamed chat reply. Token lines carry
// Token; the last line has Done set and either Turn or Error.
type StreamLine struct {
	Token string `json:"token,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Turn  *Turn  `json:"turn,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// ModelsResponse wraps the list returned by GET /models.
type ModelsResponse struct {
	// Directory that was scanned.
	// example: ~/models/llm
	Dir    string      `json:"dir" example:"~/models/llm"`
	Models []ModelFile `json:"models"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Turns []Turn `json:"turns"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: "model.bin" is not a .gguf file
	Error string `json:"error" example:"\"model.bin\" is not a .gguf file"`
	// HTTP status code.
	// example: 415
	Code int `json:"code" example:"415"`
	// Machine-readable error kind, when known.
	// example: invalid_file_type
	Kind string `json:"kind,omitempty" example:"invalid_file_type"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Session state: unloaded, loading, ready or failed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Why the last load or generation failed.
	Reason string `json:"reason,omitempty"`
	// Identifier of the loaded handle; changes on every load.
	// example: 3f2c1a9e-8d4b-4c7e-9a51-2b6f0e7d1c3a
	SessionID string       `json:"session_id,omitempty" example:"3f2c1a9e-8d4b-4c7e-9a51-2b6f0e7d1c3a"`
	Model     *LoadedModel `json:"model,omitempty"`
	// Memory budget in MB; 0 means unlimited.
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated memory used by the loaded model in MB.
	// example: 894
	EstimatedMB int `json:"est_mb" example:"894"`
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// example: 8
	MaxQueueDepth int `json:"max_queue_depth" example:"8"`
	// Number of turns in the conversation.
	// example: 4
	Turns int `json:"turns" example:"4"`
	// Generations served by this process.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Whether this binary was built with the inference runtime.
	// example: true
	EngineBuilt bool `json:"engine_built" example:"true"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
