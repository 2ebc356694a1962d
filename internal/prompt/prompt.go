// Package prompt renders conversation turns into model-family chat prompts.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"localchat/internal/conversation"
)

// Message is one entry handed to a template.
type Message struct {
	Role    string
	Content string
}

type data struct {
	Messages            []Message
	AddGenerationPrompt bool
}

// Template is a parsed chat format with the stop sequences its turns end with.
type Template struct {
	Name string
	Stop []string
	tmpl *template.Template
}

const chatMLText = `{{range .Messages}}<|im_start|>{{.Role}}
{{.Content}}<|im_end|>
{{end}}{{if .AddGenerationPrompt}}<|im_start|>assistant
{{end}}`

const llama3Text = `<|begin_of_text|>{{range .Messages}}<|start_header_id|>{{.Role}}<|end_header_id|>

{{.Content}}<|eot_id|>{{end}}{{if .AddGenerationPrompt}}<|start_header_id|>assistant<|end_header_id|>

{{end}}`

// Gemma has no system role; system text is sent as a user turn.
const gemmaText = `{{range .Messages}}<start_of_turn>{{if eq .Role "assistant"}}model{{else}}user{{end}}
{{.Content}}<end_of_turn>
{{end}}{{if .AddGenerationPrompt}}<start_of_turn>model
{{end}}`

const instText = `[INST] {{range .Messages}}{{if eq .Role "system"}}<<SYS>>
{{.Content}}
<</SYS>>

{{else if eq .Role "user"}}{{.Content}} [/INST]{{else}} {{.Content}}</s>[INST] {{end}}{{end}}`

var (
	ChatML = mustParse("chatml", chatMLText, "<|im_end|>")
	Llama3 = mustParse("llama3", llama3Text, "<|eot_id|>")
	Gemma  = mustParse("gemma", gemmaText, "<end_of_turn>")
	Inst   = mustParse("inst", instText, "</s>", "[INST]")
)

var byName = map[string]*Template{
	ChatML.Name: ChatML,
	Llama3.Name: Llama3,
	Gemma.Name:  Gemma,
	Inst.Name:   Inst,
}

func mustParse(name, text string, stop ...string) *Template {
	return &Template{
		Name: name,
		Stop: stop,
		tmpl: template.Must(template.New(name).Parse(text)),
	}
}

// ByName looks up a built-in template ("chatml", "llama3", "gemma", "inst").
func ByName(name string) (*Template, bool) {
	t, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Detect picks a template from the model's embedded Jinja template when it
// carries a recognizable marker, then from the architecture. ChatML is the
// fallback.
func Detect(arch, embedded string) *Template {
	switch {
	case strings.Contains(embedded, "<|start_header_id|>"):
		return Llama3
	case strings.Contains(embedded, "<|im_start|>"):
		return ChatML
	case strings.Contains(embedded, "<start_of_turn>"):
		return Gemma
	case strings.Contains(embedded, "[INST]"):
		return Inst
	}
	a := strings.ToLower(arch)
	switch {
	case strings.HasPrefix(a, "gemma"):
		return Gemma
	case a == "mistral":
		return Inst
	}
	return ChatML
}

// Render formats an optional system message, the retained history and the
// new user text, ending with the assistant generation prompt.
func (t *Template) Render(system string, history []conversation.Turn, text string) (string, error) {
	msgs := make([]Message, 0, len(history)+2)
	if s := strings.TrimSpace(system); s != "" {
		msgs = append(msgs, Message{Role: "system", Content: s})
	}
	for _, turn := range history {
		msgs = append(msgs, Message{Role: string(turn.Role), Content: turn.Text})
	}
	msgs = append(msgs, Message{Role: string(conversation.RoleUser), Content: text})

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data{Messages: msgs, AddGenerationPrompt: true}); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name, err)
	}
	return b.String(), nil
}
