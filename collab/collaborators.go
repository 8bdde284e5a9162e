package collab

import "github.com/landviz/collab-api/models"

// CameraRig is the narrow interface to the rendering layer's camera and
// controls. The collaboration layer never constructs scene objects itself.
type CameraRig interface {
	Pose() models.Pose
	SetPose(pose models.Pose)
	// Teleport repositions the play area instead of overwriting the pose, which
	// preserves room-scale offsets in VR.
	Teleport(pose models.Pose)
	ControllerPoses() (*models.Pose, *models.Pose)
	ProjectionMatrix() [16]float64
	SetProjectionMatrix(matrix [16]float64)
	ControlsEnabled() bool
	SetControlsEnabled(enabled bool)
}

// CreatedApplication lists the entity ids produced by one create-application
// gesture: the application itself plus its default package and class.
type CreatedApplication struct {
	AppID     string
	PackageID string
	ClassID   string
}

// LandscapeModel applies named structural mutations against the visualized
// model. Implemented by the rendering layer; entity ids are local to each
// client.
type LandscapeModel interface {
	RenameApplication(id, name string) (previousName string, err error)
	RenamePackage(id, name string) (previousName string, err error)
	RenameSubPackage(id, name string) (previousName string, err error)
	RenameClass(id, name string) (previousName string, err error)

	CreateApplication(name, language string) (CreatedApplication, error)
	CreatePackage(parentID, name string) (id string, err error)
	CreateSubPackage(parentID, name string) (id string, err error)
	CreateClass(parentID, name string) (id string, err error)

	// DeleteEntity returns the display name the entity had so a later undo can
	// restore it.
	DeleteEntity(entityType models.EntityType, id string) (name string, err error)
	UndeleteEntity(entityType models.EntityType, id, name string) error

	ParentOf(entityType models.EntityType, id string) (parentID string, err error)
	CutAndInsert(clipped models.EntityType, clippedID, destinationID string) error

	AddCommunication(sourceClassID, targetClassID, methodName string) error

	ApplyMousePing(modelID string, position [3]float64, isRestartable bool)
	ApplyComponentUpdate(appID, componentID string, isFoundation, isOpened bool)
	ApplyHighlighting(appID string, entityType models.EntityType, entityID string, isHighlighted bool)
}

// Notifier renders transient user-facing notifications; failures surfaced here
// never terminate the client session
type Notifier interface {
	ShowInfo(message string)
	ShowError(message string)
}
