package models

import "encoding/json"

// Event names understood by the relay and the collaboration client. The relay
// forwards most of these verbatim; chat events are answered by the relay itself.
const (
	EventSelfConnected             = "self_connected"
	EventUserConnected             = "user_connected"
	EventUserDisconnected          = "user_disconnected"
	EventPoseUpdate                = "pose_update"
	EventMousePingUpdate           = "mouse_ping_update"
	EventSpectatingUpdate          = "spectating_update"
	EventChatMessage               = "chat_message"
	EventChatSynchronize           = "chat_synchronize"
	EventMessageDelete             = "message_delete"
	EventComponentUpdate           = "component_update"
	EventHighlightingUpdate        = "highlighting_update"
	EventRestructureModeUpdate     = "restructure_mode_update"
	EventRestructureUpdate         = "restructure_update"
	EventRestructureCreateOrDelete = "restructure_create_or_delete"
	EventRestructureCutAndInsert   = "restructure_cut_and_insert"
	EventRestructureCommunication  = "restructure_communication"
)

// Envelope is the uniform wire frame. Outbound frames from a client omit
// UserID; the relay stamps the sender id from the authenticated connection
// before forwarding, so receivers never trust an identity from the payload.
type Envelope struct {
	Event   string          `json:"event"`
	UserID  string          `json:"userId,omitempty"`
	Nonce   *uint64         `json:"nonce,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// SelfConnectedMessage is the join handshake response assigning the local
// identity and delivering the current membership snapshot
type SelfConnectedMessage struct {
	Self  UserSnapshot   `json:"self"`
	Users []UserSnapshot `json:"users"`
}

// UserConnectedMessage announces a new session member
type UserConnectedMessage struct {
	User UserSnapshot `json:"user"`
}

// UserDisconnectedMessage announces a member leaving the session
type UserDisconnectedMessage struct {
	ID string `json:"id"`
}

// PoseUpdateMessage carries the camera and up to two controller transforms of
// the sending user
type PoseUpdateMessage struct {
	Camera      Pose  `json:"camera"`
	Controller1 *Pose `json:"controller1,omitempty"`
	Controller2 *Pose `json:"controller2,omitempty"`
}

// MousePingUpdateMessage highlights a model entity at a world position
type MousePingUpdateMessage struct {
	ModelID       string     `json:"modelId"`
	IsRestartable bool       `json:"isRestartable"`
	Position      [3]float64 `json:"position"`
}

// SpectatingUpdateMessage reconciles who is spectating whom
type SpectatingUpdateMessage struct {
	IsSpectating      bool                   `json:"isSpectating"`
	SpectatedUserID   string                 `json:"spectatedUserId"`
	SpectatingUserIDs []string               `json:"spectatingUserIds"`
	Configuration     *SpectateConfiguration `json:"configuration,omitempty"`
}

// ChatSynchronizeMessage is the respondable reply carrying the full chat log
type ChatSynchronizeMessage struct {
	Messages []ChatMessage `json:"messages"`
}

// MessageDeleteMessage removes chat messages by id on every client
type MessageDeleteMessage struct {
	MsgIDs []int `json:"msgIds"`
}

// ComponentUpdateMessage replicates opening/closing a component of an
// application in the 3D scene
type ComponentUpdateMessage struct {
	AppID        string `json:"appId"`
	ComponentID  string `json:"componentId"`
	IsFoundation bool   `json:"isFoundation"`
	IsOpened     bool   `json:"isOpened"`
}

// HighlightingUpdateMessage replicates entity highlighting
type HighlightingUpdateMessage struct {
	AppID         string     `json:"appId"`
	EntityType    EntityType `json:"entityType"`
	EntityID      string     `json:"entityId"`
	IsHighlighted bool       `json:"isHighlighted"`
}

// RestructureUpdateMessage renames a landscape entity
type RestructureUpdateMessage struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	NewName    string     `json:"newName"`
	AppID      string     `json:"appId,omitempty"`
}

// RestructureCreateOrDeleteMessage creates or deletes a landscape entity
type RestructureCreateOrDeleteMessage struct {
	Action     ChangeLogAction `json:"action"`
	EntityType EntityType      `json:"entityType"`
	Name       string          `json:"name,omitempty"`
	Language   string          `json:"language,omitempty"`
	EntityID   string          `json:"entityId,omitempty"`
}

// RestructureCutAndInsertMessage moves an entity under a new parent
type RestructureCutAndInsertMessage struct {
	DestinationEntity EntityType `json:"destinationEntity"`
	DestinationID     string     `json:"destinationId"`
	ClippedEntity     EntityType `json:"clippedEntity"`
	ClippedEntityID   string     `json:"clippedEntityId"`
}

// RestructureCommunicationMessage adds a communication between two classes
type RestructureCommunicationMessage struct {
	SourceClassID string `json:"sourceClassId"`
	TargetClassID string `json:"targetClassId"`
	MethodName    string `json:"methodName"`
}
