package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// DeviceConfiguration presets the exact projection matrix for one known device,
// looked up by the opaque deviceId a client passes on connect
type DeviceConfiguration struct {
	DeviceID         string      `json:"deviceId" bson:"deviceId"`
	ProjectionMatrix [16]float64 `json:"projectionMatrix" bson:"projectionMatrix"`
}

// SpectateConfig holds the structure for the spectateConfigs collection in mongo.
// Configs are operator presets that let a spectate session frame known
// kiosk/screen devices exactly; they are owned by the user that created them.
type SpectateConfig struct {
	ID        primitive.ObjectID    `json:"_id" bson:"_id,omitempty"`
	Name      string                `json:"name" bson:"name"`
	OwnerID   string                `json:"ownerId" bson:"ownerId"`
	Devices   []DeviceConfiguration `json:"devices" bson:"devices"`
	Deleted   bool                  `json:"deleted" bson:"deleted"`
	CreatedAt primitive.DateTime    `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime    `json:"updatedAt" bson:"updatedAt"`
}

// SpectateConfiguration is the wire form of a config attached to a
// spectating_update message
type SpectateConfiguration struct {
	Name    string                `json:"name"`
	Devices []DeviceConfiguration `json:"devices"`
}
