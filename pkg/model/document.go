// Loading and saving tagged configuration documents as JSON or YAML
// YAML documents are converted to JSON and share the codec with JSON input
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the syntax of a configuration document.
type Format int

const (
	JSON Format = iota
	YAML
)

func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatFromPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// LoadConfig reads a tagged configuration document of the registry's kind.
func LoadConfig[C Config](path string, codec *Codec, reg *Registry[C]) (C, error) {
	var zero C
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path is expected
	if err != nil {
		return zero, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := DecodeDocument(data, FormatFromPath(path), codec, reg)
	if err != nil {
		return zero, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeDocument decodes a tagged configuration written in the given format.
func DecodeDocument[C Config](data []byte, format Format, codec *Codec, reg *Registry[C]) (C, error) {
	if format == YAML {
		converted, err := YAMLToJSON(data)
		if err != nil {
			var zero C
			return zero, err
		}
		data = converted
	}
	return Decode(codec, reg, data)
}

// EncodeDocument encodes cfg in the given format. JSON output is indented.
func EncodeDocument(cfg Config, format Format, codec *Codec) ([]byte, error) {
	data, err := codec.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if format == YAML {
		return JSONToYAML(data)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// SaveConfig writes cfg to path in the format implied by its extension.
func SaveConfig(path string, cfg Config, codec *Codec) error {
	data, err := EncodeDocument(cfg, FormatFromPath(path), codec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config files are not secret
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// YAMLToJSON converts a YAML document into equivalent JSON.
func YAMLToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("converting yaml to json: %w", err)
	}
	return out, nil
}

// JSONToYAML converts a JSON document into block-style YAML, keeping the key
// order of the input. Lists of scalars stay on one line.
func JSONToYAML(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	restyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func restyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		restyle(c)
	}
	if n.Kind == yaml.SequenceNode && len(n.Content) > 0 && allScalars(n.Content) {
		n.Style = yaml.FlowStyle
	}
}

func allScalars(nodes []*yaml.Node) bool {
	for _, n := range nodes {
		if n.Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}
