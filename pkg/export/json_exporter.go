package export

import (
	"encoding/json"
	"fmt"
)

// JSONExporter renders an arbitrary payload as indented JSON bytes.
type JSONExporter struct{}

// NewJSONExporter builds a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Render marshals the payload for download.
func (e *JSONExporter) Render(payload interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return data, nil
}
