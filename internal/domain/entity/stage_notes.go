package entity

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/garyjia/ohsms/internal/domain/workflow"
)

// StageNotes holds free text notes keyed by stage. Only annotated stages are present.
type StageNotes map[workflow.Stage]string

// Get returns the note for a stage or an empty string
func (n StageNotes) Get(stage workflow.Stage) string {
	return n[stage]
}

// Has returns true if a non-empty note exists for the stage
func (n StageNotes) Has(stage workflow.Stage) bool {
	return n[stage] != ""
}

// Clone returns a copy of the mapping
func (n StageNotes) Clone() StageNotes {
	if n == nil {
		return nil
	}
	out := make(StageNotes, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the notes as an object keyed by the decimal stage index
func (n StageNotes) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(n))
	for k, v := range n {
		m[strconv.Itoa(int(k))] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by the decimal stage index
func (n *StageNotes) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(StageNotes, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid stage key %q: %w", k, err)
		}
		out[workflow.Stage(idx)] = v
	}
	*n = out
	return nil
}
