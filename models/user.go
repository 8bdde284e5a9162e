package models

// ConnectionState describes what a remote user is currently doing in the session
type ConnectionState string

// Connection states reported through spectating updates
const (
	StateOnline     ConnectionState = "online"
	StateSpectating ConnectionState = "spectating"
)

// VisualizationMode is the device class a client is visualizing with
type VisualizationMode string

// Supported visualization modes
const (
	ModeBrowser VisualizationMode = "browser"
	ModeAR      VisualizationMode = "ar"
	ModeVR      VisualizationMode = "vr"
)

// Color is an RGB triple assigned to a user by the relay on join
type Color struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// Pose is a position plus orientation quaternion for a camera or controller
type Pose struct {
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"`
}

// UserSnapshot is the relay's view of a session member, sent in the join
// handshake and in user_connected events
type UserSnapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Color  Color           `json:"color"`
	IsHost bool            `json:"isHost"`
	State  ConnectionState `json:"state"`
}
