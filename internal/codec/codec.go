// Package codec serializes table snapshots for export and import.
package codec

import (
	"io"

	"cellstore/internal/domain"
)

// Snapshot is the portable form of one table: its name and every record
// visible when the snapshot was taken.
type Snapshot struct {
	Table   string           `json:"table" yaml:"table"`
	Records []*domain.Record `json:"records" yaml:"records"`
}

// Importer parses a snapshot from a serialized stream
type Importer interface {
	Parse(r io.Reader) (*Snapshot, error)
	Format() string
}

// Exporter writes a snapshot to a serialized stream
type Exporter interface {
	Export(snap *Snapshot, w io.Writer) error
	Format() string
}

// ByFormat returns the codec for a format identifier, or nil when the
// format is unknown.
func ByFormat(format string) interface {
	Importer
	Exporter
} {
	switch format {
	case "json":
		return NewJSONCodec()
	case "yaml", "yml":
		return NewYAMLCodec()
	}
	return nil
}
