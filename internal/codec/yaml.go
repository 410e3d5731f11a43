package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"cellstore/internal/domain"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlSnapshot keeps records in their flattened form so YAML documents
// stay plain maps rather than leaning on Record's JSON methods.
type yamlSnapshot struct {
	Table   string           `yaml:"table"`
	Records []map[string]any `yaml:"records"`
}

// Parse imports a snapshot from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*Snapshot, error) {
	var ys yamlSnapshot
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&ys); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	snap := &Snapshot{
		Table:   ys.Table,
		Records: make([]*domain.Record, 0, len(ys.Records)),
	}
	for _, flat := range ys.Records {
		snap.Records = append(snap.Records, domain.RecordFromFlat(flat))
	}

	return snap, nil
}

// Export writes a snapshot to YAML
func (c *YAMLCodec) Export(snap *Snapshot, w io.Writer) error {
	ys := yamlSnapshot{
		Table:   snap.Table,
		Records: make([]map[string]any, 0, len(snap.Records)),
	}
	for _, rec := range snap.Records {
		ys.Records = append(ys.Records, rec.Flatten())
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ys); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
