package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrUnknownSection is returned for a path whose first segment is not a
	// top-level config section.
	ErrUnknownSection = errors.New("unknown config section")
	// ErrUnknownKey is returned for a path that names no config value.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrBadValue is returned when a value does not fit the key's type.
	ErrBadValue = errors.New("invalid config value")
)

// Path is one dot-notation key with its current value.
type Path struct {
	Key   string
	Value any
}

// tree returns cfg as nested JSON maps.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// splitPath checks the section of a dot-notation path and returns its
// segments.
func splitPath(root map[string]any, path string) ([]string, error) {
	parts := strings.Split(path, ".")
	if _, ok := root[parts[0]].(map[string]any); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, parts[0])
	}
	return parts, nil
}

// GetByPath returns the value at a dot-notation path such as
// "policy.moderationPerMinute". List entries are addressed by index.
func GetByPath(cfg *Config, path string) (any, error) {
	root, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	parts, err := splitPath(root, path)
	if err != nil {
		return nil, err
	}

	var cur any = root
	for _, key := range parts {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("%w: %s (index %q)", ErrUnknownKey, path, key)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("%w: %s is a value, not a section", ErrUnknownKey, strings.Join(parts[:len(parts)-1], "."))
		}
	}
	return cur, nil
}

// SetByPath parses raw for the key at path and stores it in cfg. Lists take
// comma-separated entries. cfg is left unchanged on error.
func SetByPath(cfg *Config, path, raw string) error {
	root, err := tree(cfg)
	if err != nil {
		return err
	}
	parts, err := splitPath(root, path)
	if err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("%w: %s (expected section.key)", ErrUnknownKey, path)
	}
	section := root[parts[0]].(map[string]any)
	key := parts[1]

	current, known := section[key]
	if _, isSection := current.(map[string]any); isSection {
		return fmt.Errorf("%w: %s is a section", ErrUnknownKey, path)
	}
	// An omitted empty field is absent from the tree, so its type is unknown
	// and each reading of raw is tried in turn.
	var candidates []any
	switch current.(type) {
	case []any:
		candidates = []any{splitList(raw)}
	case string:
		candidates = []any{raw}
	default:
		candidates = []any{parseValue(raw)}
		if !known {
			candidates = append(candidates, raw, splitList(raw))
		}
	}
	var (
		next  *Config
		value any
	)
	for _, value = range candidates {
		if next, err = decodeTree(root, section, key, value); err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrBadValue, path, err)
	}

	// A key outside the struct decodes silently; it only shows up as missing
	// once a non-empty value fails to round-trip.
	if !known && !isZero(value) {
		if _, err := GetByPath(next, path); err != nil {
			return err
		}
	}
	*cfg = *next
	return nil
}

func decodeTree(root, section map[string]any, key string, value any) (*Config, error) {
	section[key] = value
	data, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func splitList(raw string) []any {
	out := []any{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseValue reads booleans and numbers; anything else stays a string.
func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case bool:
		return !x
	case int64:
		return x == 0
	case float64:
		return x == 0
	case []any:
		return len(x) == 0
	}
	return v == nil
}

// Sanitize returns a copy of cfg with secrets masked. Webhook secrets are
// hidden entirely.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	for _, secret := range []struct {
		value *string
		hide  bool
	}{
		{&out.Bridge.Token, false},
		{&out.Telegram.Token, false},
		{&out.Admin.Token, false},
		{&out.Admin.WebhookSecret, true},
	} {
		switch {
		case *secret.value == "":
		case secret.hide:
			*secret.value = "***"
		default:
			*secret.value = maskString(*secret.value)
		}
	}
	return &out
}

// maskString keeps the first and last four characters of long secrets.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns every leaf of cfg, sorted by key. Lists are leaves.
func ListPaths(cfg *Config) []Path {
	root, err := tree(cfg)
	if err != nil {
		return nil
	}
	var out []Path
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := prefix + k
			if child, ok := v.(map[string]any); ok {
				walk(key+".", child)
				continue
			}
			out = append(out, Path{Key: key, Value: v})
		}
	}
	walk("", root)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
