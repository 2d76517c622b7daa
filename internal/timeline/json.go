package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/framecut/framecut-agent/internal/media"
)

// Marshal encodes the project to its persisted JSON document.
func Marshal(p *Project) ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal decodes a persisted project document.
func Unmarshal(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cannot decode project document: %w", err)
	}
	if p.Assets == nil {
		p.Assets = make(map[string]*media.Asset)
	}
	return &p, nil
}

// Snapshot returns a deep copy of the project via its lossless JSON
// representation. Exports plan against a snapshot so live edits cannot
// affect an in-flight render.
func Snapshot(p *Project) (*Project, error) {
	data, err := Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("cannot snapshot project: %w", err)
	}
	return Unmarshal(data)
}
