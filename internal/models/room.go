package models

// RoomInfo is a point-in-time view of an active room
type RoomInfo struct {
	ID      string       `json:"id"`
	Size    int          `json:"size"`
	Members []MemberInfo `json:"members,omitempty"`
}

// MemberInfo describes one connection inside a room
type MemberInfo struct {
	ClientID string `json:"clientId"`
	Role     string `json:"role"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}
