package target

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"brainc/internal/prompt"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("target: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block was not closed.
	ErrMalformedFrontMatter = errors.New("target: malformed frontmatter")
)

// FrontMatter is the YAML header of agent, command and skill files.
type FrontMatter struct {
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Model       string            `yaml:"model,omitempty"`
	Color       string            `yaml:"color,omitempty"`
	Extra       map[string]string `yaml:",inline"`
}

func frontMatterFor(kind prompt.Kind, meta prompt.Meta) FrontMatter {
	fm := FrontMatter{Description: meta.Description}
	for k, v := range meta.Extra {
		switch k {
		case "name", "description", "model", "color":
			continue // fixed fields win
		}
		if fm.Extra == nil {
			fm.Extra = make(map[string]string)
		}
		fm.Extra[k] = v
	}
	switch kind {
	case prompt.Agent:
		fm.Name = meta.ID
		fm.Model = meta.Model
		fm.Color = meta.Color
	case prompt.Command:
		fm.Model = meta.Model
	case prompt.Skill:
		fm.Name = meta.ID
	}
	return fm
}

// WriteFrontMatter renders metadata and body with YAML fences.
func WriteFrontMatter(fm FrontMatter, body []byte) ([]byte, error) {
	data, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("target: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParseFrontMatter extracts the YAML header and body from a document that
// starts with `---` fences.
func ParseFrontMatter(content []byte) (FrontMatter, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return FrontMatter{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return FrontMatter{}, nil, ErrMalformedFrontMatter
	}
	var fm FrontMatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return FrontMatter{}, nil, fmt.Errorf("target: parse frontmatter: %w", err)
	}
	return fm, bytes.TrimPrefix(parts[1], []byte("\n")), nil
}

// TOMLCommand is the command file format read by qwen and gemini.
type TOMLCommand struct {
	Description string `toml:"description"`
	Prompt      string `toml:"prompt,multiline"`
}

func writeTOMLCommand(meta prompt.Meta, body string) ([]byte, error) {
	data, err := toml.Marshal(TOMLCommand{Description: meta.Description, Prompt: body})
	if err != nil {
		return nil, fmt.Errorf("target: encode toml command: %w", err)
	}
	return data, nil
}

// ParseTOMLCommand decodes a TOML command file.
func ParseTOMLCommand(content []byte) (TOMLCommand, error) {
	var cmd TOMLCommand
	if err := toml.Unmarshal(content, &cmd); err != nil {
		return TOMLCommand{}, fmt.Errorf("target: parse toml command: %w", err)
	}
	return cmd, nil
}

const commentPrefix = "<!-- brainc: "

func writeCommentHeader(kind prompt.Kind, meta prompt.Meta, body []byte) []byte {
	var buf bytes.Buffer
	line := func(key, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&buf, "%s%s=%s -->\n", commentPrefix, key, commentSafe(value))
	}

	line("id", meta.ID)
	line("kind", string(kind))
	line("description", meta.Description)
	line("model", meta.Model)
	line("color", meta.Color)
	for _, k := range meta.ExtraKeys() {
		line(k, meta.Extra[k])
	}
	buf.WriteString("\n")
	buf.Write(body)
	return buf.Bytes()
}

// commentSafe keeps a value on one line and out of comment terminators.
func commentSafe(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return strings.ReplaceAll(v, "--", "- -")
}

// ParseCommentHeader reads the key=value header lines and returns them with
// the remaining body.
func ParseCommentHeader(content []byte) (map[string]string, []byte) {
	header := make(map[string]string)
	rest := content
	for {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		line := string(rest[:nl])
		if !strings.HasPrefix(line, commentPrefix) || !strings.HasSuffix(line, " -->") {
			break
		}
		kv := strings.TrimSuffix(strings.TrimPrefix(line, commentPrefix), " -->")
		if k, v, ok := strings.Cut(kv, "="); ok {
			header[k] = v
		}
		rest = rest[nl+1:]
	}
	return header, bytes.TrimPrefix(rest, []byte("\n"))
}

// Body strips any envelope from rendered content and returns the Markdown.
func Body(content []byte) []byte {
	if _, body, err := ParseFrontMatter(content); err == nil {
		return body
	}
	if bytes.HasPrefix(content, []byte(commentPrefix)) {
		_, body := ParseCommentHeader(content)
		return body
	}
	if cmd, err := ParseTOMLCommand(content); err == nil && cmd.Prompt != "" {
		return []byte(cmd.Prompt)
	}
	return content
}
