package config

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/backupkern/internal/errors"
)

// Format is a serialization format for `config show`.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Document is the on-disk form of a Config.
type Document struct {
	Source       string   `yaml:"source" toml:"source"`
	Destination  []string `yaml:"destination" toml:"destination"`
	Prefix       string   `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Ignore       []string `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
	CompareMode  bool     `yaml:"compare_mode" toml:"compare_mode"`
	EntryTimeout string   `yaml:"entry_timeout,omitempty" toml:"entry_timeout,omitempty"`
}

// Document returns the serializable form of c.
func (c *Config) Document() Document {
	d := Document{
		Source:      c.Source,
		Destination: c.Destination,
		Prefix:      c.Prefix,
		Ignore:      c.Ignore,
		CompareMode: c.CompareMode,
	}
	if c.EntryTimeout > 0 {
		d.EntryTimeout = c.EntryTimeout.String()
	}
	return d
}

// Encode serializes c in the given format.
func Encode(c *Config, format Format) ([]byte, error) {
	doc := c.Document()
	switch format {
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, "encoding yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "encoding yaml")
		}
		return buf.Bytes(), nil
	case FormatTOML:
		data, err := toml.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "encoding toml")
		}
		return data, nil
	default:
		return nil, errors.Newf("unsupported format %q (use yaml or toml)", format)
	}
}
