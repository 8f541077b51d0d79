package layout

import (
	"embed"
	"fmt"
	"path"
	"strings"
)

//go:embed templates/*.xml
var builtinFS embed.FS

// Builtin parses every template shipped inside the binary.
func Builtin() ([]*Template, error) {
	entries, err := builtinFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
			continue
		}
		data, err := builtinFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", entry.Name(), err)
		}
		tmpl, err := ParseTemplateString(strings.TrimSuffix(entry.Name(), ".xml"), string(data))
		if err != nil {
			return nil, fmt.Errorf("embedded template %s: %w", entry.Name(), err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
