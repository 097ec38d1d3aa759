package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/phrazzld/suggestion-api/internal/generation"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

const (
	contentTemplateName   = "content.tmpl"
	reasoningTemplateName = "reasoning.tmpl"
)

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// loadTemplate parses the template at path, or the embedded default named
// name when path is empty.
func loadTemplate(name, path string) (*template.Template, error) {
	var (
		body []byte
		err  error
	)
	if path != "" {
		body, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				generation.ErrInvalidConfig, path, err)
		}
	} else {
		body, err = promptFS.ReadFile("prompts/" + name)
		if err != nil {
			return nil, fmt.Errorf("%w: missing embedded template %s: %v", generation.ErrInvalidConfig, name, err)
		}
	}

	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template %s: %v", generation.ErrInvalidConfig, name, err)
	}
	return tmpl, nil
}

// render executes tmpl with data and trims the result.
func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", tmpl.Name(), err)
	}
	prompt := strings.TrimSpace(buf.String())
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	return prompt, nil
}
