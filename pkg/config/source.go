package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Source is a configuration source. The set of implementations is closed:
// FileSource, ReaderSource and MapSource.
type Source interface {
	values() (map[string]any, error)
}

// FileSource reads a YAML file. ${VAR} references inside string values are
// expanded from the environment after parsing; any other "$" is literal.
type FileSource struct {
	Path string
}

// ReaderSource reads YAML from an arbitrary reader, with the same
// environment expansion as FileSource.
type ReaderSource struct {
	Reader io.Reader
}

// MapSource supplies configuration values directly.
type MapSource struct {
	Values map[string]any
}

func (s FileSource) values() (map[string]any, error) {
	if s.Path == "" {
		return nil, &ConfigurationError{Reason: "configuration file path is empty"}
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{Reason: "YAML configuration file was not found", Err: err}
		}
		return nil, &ConfigurationError{Reason: "YAML configuration file could not be read", Err: err}
	}

	return parseYAML(data)
}

func (s ReaderSource) values() (map[string]any, error) {
	if s.Reader == nil {
		return nil, &ConfigurationError{Reason: "configuration reader is nil"}
	}

	data, err := io.ReadAll(s.Reader)
	if err != nil {
		return nil, &ConfigurationError{Reason: "configuration could not be read", Err: err}
	}

	return parseYAML(data)
}

func (s MapSource) values() (map[string]any, error) {
	if s.Values == nil {
		return map[string]any{}, nil
	}
	return s.Values, nil
}

// envRef matches an explicit ${VAR} reference.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func parseYAML(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, &ConfigurationError{Reason: "YAML configuration file contains invalid syntax", Err: err}
	}

	for key, v := range values {
		values[key] = expandEnv(v)
	}
	return values, nil
}

// expandEnv replaces ${VAR} references in string values, descending into
// nested maps and lists.
func expandEnv(v any) any {
	switch val := v.(type) {
	case string:
		return envRef.ReplaceAllStringFunc(val, func(ref string) string {
			return os.Getenv(envRef.FindStringSubmatch(ref)[1])
		})
	case map[string]any:
		for k, item := range val {
			val[k] = expandEnv(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = expandEnv(item)
		}
		return val
	default:
		return v
	}
}
