package prompt

import (
	"time"
)

// Manifest records how one artifact was produced: which definitions
// contributed, in what order, and which placeholders were left unresolved.
type Manifest struct {
	// Compilation Metadata
	Definition  string    `json:"definition"`
	Kind        Kind      `json:"kind"`
	Target      string    `json:"target"`
	SessionID   string    `json:"session_id"`
	CompiledAt  time.Time `json:"compiled_at"`
	ContentHash string    `json:"content_hash"`
	TokenCount  int       `json:"token_count"`

	// Content Breakdown
	Contributors []ContributorEntry `json:"contributors"`
	Unresolved   []string           `json:"unresolved,omitempty"`
}

// ContributorEntry details one definition that contributed fragments.
type ContributorEntry struct {
	ID        string   `json:"id"`
	Fragments []string `json:"fragments"`
}

// NewManifest builds the manifest for a resolution rendered to content.
func NewManifest(res *Resolution, s *Session, content string, unresolved []string) *Manifest {
	m := &Manifest{
		Definition:  res.Root.Meta.ID,
		Kind:        res.Root.Kind,
		Target:      s.Target(),
		SessionID:   s.ID(),
		CompiledAt:  time.Now(),
		ContentHash: HashContent(content),
		TokenCount:  EstimateTokens(content),
		Unresolved:  append([]string(nil), unresolved...),
	}

	byOrigin := make(map[string][]string, len(res.Order))
	for _, rf := range res.Fragments {
		byOrigin[rf.Origin] = append(byOrigin[rf.Origin], rf.Fragment.ID)
	}
	for _, id := range res.Order {
		m.Contributors = append(m.Contributors, ContributorEntry{ID: id, Fragments: byOrigin[id]})
	}
	return m
}

// FragmentCount returns the total number of fragments across contributors.
func (m *Manifest) FragmentCount() int {
	n := 0
	for _, c := range m.Contributors {
		n += len(c.Fragments)
	}
	return n
}
