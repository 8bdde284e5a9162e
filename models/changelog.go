package models

// ChangeLogAction is the kind of structural mutation recorded in the changelog
type ChangeLogAction string

// Changelog actions
const (
	ActionCreate    ChangeLogAction = "CREATE"
	ActionRename    ChangeLogAction = "RENAME"
	ActionDelete    ChangeLogAction = "DELETE"
	ActionCutInsert ChangeLogAction = "CUTINSERT"
)

// EntityType identifies which part of the landscape model a mutation targets
type EntityType string

// Landscape entity types
const (
	EntityApp           EntityType = "APP"
	EntityPackage       EntityType = "PACKAGE"
	EntitySubPackage    EntityType = "SUBPACKAGE"
	EntityClass         EntityType = "CLAZZ"
	EntityCommunication EntityType = "COMMUNICATION"
)

// ChangeLogEntry records one applied structural mutation so it can be undone.
// Entries created by the same user gesture share a GestureID and are undone
// together as a bundle.
type ChangeLogEntry struct {
	Action        ChangeLogAction `json:"action"`
	EntityType    EntityType      `json:"entityType"`
	EntityID      string          `json:"entityId"`
	NewName       string          `json:"newName,omitempty"`
	PreviousName  string          `json:"previousName,omitempty"`
	Language      string          `json:"language,omitempty"`
	SourceID      string          `json:"sourceId,omitempty"`
	DestinationID string          `json:"destinationId,omitempty"`
	GestureID     string          `json:"gestureId"`
}
