package settings

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// format picks the document encoding from the file extension.
type format string

const (
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

func (f format) encode(s *Settings) ([]byte, error) {
	switch f {
	case formatYAML:
		return yaml.Marshal(s)
	default:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// decode validates data against the schema before filling out. Owner entries
// come back canonical.
func (f format) decode(data []byte, out *Settings) error {
	doc, err := f.toJSON(data)
	if err != nil {
		return err
	}
	if err := validateJSON(doc); err != nil {
		return err
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	out.normalizeOwners()
	return nil
}

// toJSON converts a document to JSON so one schema path serves both formats.
func (f format) toJSON(data []byte) ([]byte, error) {
	if f != formatYAML {
		var probe any
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}
