package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/livenotify/internal/dispatch"
)

// methodKey selects the method of a request document. It is removed from
// the arguments before they are sent.
const methodKey = "method"

// fileKeys are argument keys carrying raw bytes. In request files their
// value may be "@path", read relative to the request file.
var fileKeys = map[string]bool{
	dispatch.KeyLargeIcon:           true,
	dispatch.KeyProgressTrackerIcon: true,
	"imageBytes":                    true,
}

// Request is one document of a request file.
type Request struct {
	Method string
	Args   map[string]any
}

// LoadRequests reads every YAML document of the request file at path.
func LoadRequests(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	reqs, err := ParseRequests(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// ParseRequests parses a stream of YAML request documents. File references
// are resolved against baseDir.
func ParseRequests(data []byte, baseDir string) ([]Request, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var reqs []Request
	for i := 0; ; i++ {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		if doc == nil {
			continue
		}

		req, err := newRequest(doc, baseDir)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		reqs = append(reqs, req)
	}

	if len(reqs) == 0 {
		return nil, errors.New("no requests found")
	}
	return reqs, nil
}

func newRequest(doc map[string]any, baseDir string) (Request, error) {
	method := ""
	if v, ok := doc[methodKey]; ok {
		s, ok := v.(string)
		if !ok {
			return Request{}, fmt.Errorf("%s must be a string", methodKey)
		}
		method = s
		delete(doc, methodKey)
	}
	if method == "" {
		method = defaultMethod(doc)
	}

	args, err := resolveFiles(doc, baseDir)
	if err != nil {
		return Request{}, err
	}
	return Request{Method: method, Args: args.(map[string]any)}, nil
}

// defaultMethod picks the bound renderer for documents naming a layout.
func defaultMethod(args map[string]any) string {
	if _, ok := args[dispatch.KeyLayoutName]; ok {
		return dispatch.MethodRenderBound
	}
	return dispatch.MethodRenderStyled
}

// resolveFiles replaces "@path" values of file keys with the file contents.
func resolveFiles(v any, baseDir string) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok && fileKeys[k] && strings.HasPrefix(s, "@") {
				data, err := readRelative(baseDir, s[1:])
				if err != nil {
					return nil, fmt.Errorf("%s: %w", k, err)
				}
				t[k] = data
				continue
			}
			resolved, err := resolveFiles(val, baseDir)
			if err != nil {
				return nil, err
			}
			t[k] = resolved
		}
		return t, nil
	case []any:
		for i, val := range t {
			resolved, err := resolveFiles(val, baseDir)
			if err != nil {
				return nil, err
			}
			t[i] = resolved
		}
		return t, nil
	default:
		return v, nil
	}
}

func readRelative(baseDir, path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return os.ReadFile(path)
}
