package types

import "time"

// Session is one open remote project bound to one connection. Its file and
// layout state live in the workspace registry; the session record carries
// identity, the profile snapshot used at open time, and a mirror of the
// owning connection's status.
type Session struct {
	ID           string            `json:"id"`
	ConnectionID string            `json:"connection_id"`
	Profile      ConnectionProfile `json:"profile"`
	Status       ConnectionStatus  `json:"status,omitempty"`
	ProjectRoot  string            `json:"project_root"`
	Name         string            `json:"name"`
	TerminalIDs  []string          `json:"terminal_ids,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (s Session) Clone() Session {
	out := s
	out.Profile = s.Profile.Clone()
	out.TerminalIDs = append([]string(nil), s.TerminalIDs...)
	return out
}
