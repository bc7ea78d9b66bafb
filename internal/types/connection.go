package types

import "time"

type AuthMethod string

const (
	AuthMethodKey      AuthMethod = "key"
	AuthMethodPassword AuthMethod = "password"
)

// ConnectionProfile is a saved, user-authored connection descriptor. It is
// owned by the profile store and immutable except through explicit edit.
type ConnectionProfile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Username       string     `json:"username"`
	AuthMethod     AuthMethod `json:"auth_method"`
	KeyPath        string     `json:"key_path,omitempty"`
	RecentProjects []string   `json:"recent_projects,omitempty"`
	Bookmarks      []string   `json:"bookmarks,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (p ConnectionProfile) Clone() ConnectionProfile {
	out := p
	out.RecentProjects = append([]string(nil), p.RecentProjects...)
	out.Bookmarks = append([]string(nil), p.Bookmarks...)
	return out
}

type ConnectionStatus string

const (
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusReconnecting ConnectionStatus = "reconnecting"
)

// ActiveConnection is a live binding to one profile, shared by every session
// that acquired it. SessionCount is maintained solely by the multiplexer and
// never goes negative; a connection whose count reaches zero is torn down
// within the same operation.
type ActiveConnection struct {
	ID                   string            `json:"id"`
	Profile              ConnectionProfile `json:"profile"`
	SessionCount         int               `json:"session_count"`
	Status               ConnectionStatus  `json:"status"`
	LastDisconnectDetail string            `json:"last_disconnect_detail,omitempty"`
}

func (c ActiveConnection) Clone() ActiveConnection {
	out := c
	out.Profile = c.Profile.Clone()
	return out
}
