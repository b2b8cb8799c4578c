package simdata

import "fmt"

// Manager is a registry of imported result sets keyed by sim id, letting a
// batch of files that share one sim id (a master document plus fragments)
// accumulate into a single ResultSet. Not itself part of the core analysis
// algorithms — the importer is the only expected caller.
type Manager struct {
	bySimID map[string]*ResultSet
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{bySimID: make(map[string]*ResultSet)}
}

// Begin registers a new result set as the master for its sim id. Returns an
// error if a result set with that sim id already exists (two files of a
// group claiming to be the master).
func (m *Manager) Begin(rs *ResultSet) error {
	if _, exists := m.bySimID[rs.SimID]; exists {
		return fmt.Errorf("simdata: duplicate master for sim id %q", rs.SimID)
	}
	m.bySimID[rs.SimID] = rs
	return nil
}

// Lookup resolves a previously-imported result set by sim id, for
// title_ref-based fragment imports.
func (m *Manager) Lookup(simID string) (*ResultSet, error) {
	rs, ok := m.bySimID[simID]
	if !ok {
		return nil, fmt.Errorf("simdata: title_ref %q does not point to any imported run", simID)
	}
	return rs, nil
}

// All returns every registered result set.
func (m *Manager) All() []*ResultSet {
	out := make([]*ResultSet, 0, len(m.bySimID))
	for _, rs := range m.bySimID {
		out = append(out, rs)
	}
	return out
}
