// Package prompts holds the model instructions shipped with the binary.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/helixml/damkit/domain/chat"
)

//go:embed prompts.yaml
var embedded []byte

// Assistant holds the chat assistant prompts.
type Assistant struct {
	System         string `yaml:"system"`
	Upload         string `yaml:"upload"`
	AttachmentHint string `yaml:"attachment_hint"`
	Fallback       string `yaml:"fallback"`
}

// Caption holds the image caption prompt.
type Caption struct {
	Prompt      string  `yaml:"prompt"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Verification holds the content verification rubric.
type Verification struct {
	System      string  `yaml:"system"`
	Image       string  `yaml:"image"`
	Text        string  `yaml:"text"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Set is the full prompt catalogue.
type Set struct {
	Assistant    Assistant         `yaml:"assistant"`
	Caption      Caption           `yaml:"caption"`
	Verification Verification      `yaml:"verification"`
	Tools        map[string]string `yaml:"tools"`
}

// Default parses the embedded catalogue. It panics on a malformed file,
// which can only happen at build time.
func Default() Set {
	s, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse decodes a catalogue.
func Parse(data []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Set{}, fmt.Errorf("parse prompts: %w", err)
	}
	if s.Assistant.System == "" || s.Verification.System == "" || s.Caption.Prompt == "" {
		return Set{}, fmt.Errorf("parse prompts: missing required prompt")
	}
	return s, nil
}

// AssistantSystem returns the system prompt, with the upload paragraph
// appended when a file is pending.
func (s Set) AssistantSystem(file *chat.UploadedFile) string {
	if file == nil {
		return s.Assistant.System
	}
	upload := render(s.Assistant.Upload, map[string]string{
		"Name":   file.Name,
		"Type":   file.Type,
		"Path":   file.Path,
		"SizeKB": strconv.FormatFloat(float64(file.Size)/1024, 'f', 1, 64),
	})
	return s.Assistant.System + "\n\n" + upload
}

// AttachmentHint returns the reminder appended when a reply ignores a pending file.
func (s Set) AttachmentHint(name string) string {
	return render(s.Assistant.AttachmentHint, map[string]string{"Name": name})
}

// VerificationText returns the user turn for text or url content.
func (s Set) VerificationText(contentType, text string) string {
	return render(s.Verification.Text, map[string]string{"ContentType": contentType, "Text": text})
}

// ToolDescription returns the description for a tool name.
func (s Set) ToolDescription(name string) string {
	return s.Tools[name]
}

func render(tmpl string, data map[string]string) string {
	t, err := template.New("prompt").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return tmpl
	}
	return buf.String()
}
