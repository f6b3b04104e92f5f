package admission

// Request and response bodies of the admission API, shared by the client and the server.

const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type TokenRequest struct {
	RoomID      string `json:"roomId"`
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Metadata    string `json:"metadata,omitempty"`
}

type TokenResponse struct {
	Credential string `json:"credential"`
	URL        string `json:"url,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	Identity   string `json:"identity,omitempty"`
	Status     string `json:"status,omitempty"`
}

type CreateRoomRequest struct {
	RoomID          string `json:"roomId"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
}

type RoomInfo struct {
	RoomID          string `json:"roomId"`
	Metadata        string `json:"metadata,omitempty"`
	NumParticipants int    `json:"numParticipants"`
	MaxParticipants int    `json:"maxParticipants"`
	CreatedAt       int64  `json:"createdAt,omitempty"`
}

type CreateRoomResponse struct {
	Status string    `json:"status"`
	Room   *RoomInfo `json:"room,omitempty"`
}

type ListRoomsResponse struct {
	Status string     `json:"status"`
	Rooms  []RoomInfo `json:"rooms"`
}

type CapacityResponse struct {
	CanJoin         bool `json:"canJoin"`
	Participants    int  `json:"participants"`
	MaxParticipants int  `json:"maxParticipants"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	ServiceType       string `json:"serviceType,omitempty"`
	LiveKitConfigured bool   `json:"livekitConfigured"`
	RoomsCount        int    `json:"roomsCount"`
	Error             string `json:"error,omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty"`
}
