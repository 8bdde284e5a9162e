package collab

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/models"
)

// Origin says where a mutation came from. Local mutations are broadcast after
// applying; remote ones never re-broadcast, which is what keeps echo loops out
// of the protocol.
type Origin struct {
	remote   bool
	senderID string
}

// LocalOrigin marks a mutation triggered by this client
func LocalOrigin() Origin {
	return Origin{}
}

// RemoteOrigin marks a mutation forwarded by the relay on behalf of senderID
func RemoteOrigin(senderID string) Origin {
	return Origin{remote: true, senderID: senderID}
}

// IsRemote reports whether the mutation arrived over the relay
func (o Origin) IsRemote() bool {
	return o.remote
}

// SenderID returns the originating user id for remote mutations, empty for
// local ones
func (o Origin) SenderID() string {
	return o.senderID
}

// Replicator applies structural landscape mutations optimistically: local
// first, then appended to the changelog, then broadcast. Inbound mutations run
// through the same apply paths with a remote origin.
type Replicator struct {
	mu       sync.Mutex
	relay    *RelayClient
	model    LandscapeModel
	notifier Notifier

	restructureMode bool
	changelog       []models.ChangeLogEntry
}

// NewReplicator binds the replicator to the external landscape model
func NewReplicator(relay *RelayClient, model LandscapeModel, notifier Notifier) *Replicator {
	return &Replicator{
		relay:    relay,
		model:    model,
		notifier: notifier,
	}
}

// RestructureMode reports whether restructure mode is currently on
func (r *Replicator) RestructureMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restructureMode
}

// ToggleRestructureMode flips restructure mode for every session member
func (r *Replicator) ToggleRestructureMode(origin Origin) {
	r.mu.Lock()
	r.restructureMode = !r.restructureMode
	enabled := r.restructureMode
	r.mu.Unlock()

	if enabled {
		r.notifier.ShowInfo("restructure mode enabled")
	} else {
		r.notifier.ShowInfo("restructure mode disabled")
	}
	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureModeUpdate, struct{}{})
	}
}

// RenameEntity renames one landscape entity. The previous name is recorded in
// the changelog so the rename can be undone.
func (r *Replicator) RenameEntity(entityType models.EntityType, entityID, newName, appID string, origin Origin) {
	if newName == "" {
		r.reject(origin, "cannot rename to an empty name")
		return
	}

	var (
		previousName string
		err          error
	)
	switch entityType {
	case models.EntityApp:
		previousName, err = r.model.RenameApplication(entityID, newName)
	case models.EntityPackage:
		previousName, err = r.model.RenamePackage(entityID, newName)
	case models.EntitySubPackage:
		previousName, err = r.model.RenameSubPackage(entityID, newName)
	case models.EntityClass:
		previousName, err = r.model.RenameClass(entityID, newName)
	default:
		r.reject(origin, "cannot rename entity type "+string(entityType))
		return
	}
	if err != nil {
		r.reject(origin, "rename failed: "+err.Error())
		return
	}

	r.append(models.ChangeLogEntry{
		Action:       models.ActionRename,
		EntityType:   entityType,
		EntityID:     entityID,
		NewName:      newName,
		PreviousName: previousName,
		GestureID:    uuid.New().String(),
	})

	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureUpdate, models.RestructureUpdateMessage{
			EntityType: entityType,
			EntityID:   entityID,
			NewName:    newName,
			AppID:      appID,
		})
	}
}

// CreateApplication creates an application plus its default package and class.
// All three changelog entries share one gesture id, so undoing any of them
// undoes the whole gesture.
func (r *Replicator) CreateApplication(name, language string, origin Origin) {
	if name == "" {
		r.reject(origin, "application name is required")
		return
	}
	created, err := r.model.CreateApplication(name, language)
	if err != nil {
		r.reject(origin, "create application failed: "+err.Error())
		return
	}

	gestureID := uuid.New().String()
	r.append(
		models.ChangeLogEntry{
			Action:     models.ActionCreate,
			EntityType: models.EntityApp,
			EntityID:   created.AppID,
			NewName:    name,
			Language:   language,
			GestureID:  gestureID,
		},
		models.ChangeLogEntry{
			Action:     models.ActionCreate,
			EntityType: models.EntityPackage,
			EntityID:   created.PackageID,
			GestureID:  gestureID,
		},
		models.ChangeLogEntry{
			Action:     models.ActionCreate,
			EntityType: models.EntityClass,
			EntityID:   created.ClassID,
			GestureID:  gestureID,
		},
	)

	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureCreateOrDelete, models.RestructureCreateOrDeleteMessage{
			Action:     models.ActionCreate,
			EntityType: models.EntityApp,
			Name:       name,
			Language:   language,
		})
	}
}

// CreateChildEntity creates a package, subpackage or class under a parent
func (r *Replicator) CreateChildEntity(entityType models.EntityType, parentID, name string, origin Origin) {
	if name == "" {
		r.reject(origin, "entity name is required")
		return
	}

	var (
		id  string
		err error
	)
	switch entityType {
	case models.EntityPackage:
		id, err = r.model.CreatePackage(parentID, name)
	case models.EntitySubPackage:
		id, err = r.model.CreateSubPackage(parentID, name)
	case models.EntityClass:
		id, err = r.model.CreateClass(parentID, name)
	default:
		r.reject(origin, "cannot create entity type "+string(entityType))
		return
	}
	if err != nil {
		r.reject(origin, "create failed: "+err.Error())
		return
	}

	r.append(models.ChangeLogEntry{
		Action:     models.ActionCreate,
		EntityType: entityType,
		EntityID:   id,
		NewName:    name,
		SourceID:   parentID,
		GestureID:  uuid.New().String(),
	})

	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureCreateOrDelete, models.RestructureCreateOrDeleteMessage{
			Action:     models.ActionCreate,
			EntityType: entityType,
			Name:       name,
			EntityID:   parentID,
		})
	}
}

// DeleteEntity removes one landscape entity, keeping its display name in the
// changelog so an undo can restore it
func (r *Replicator) DeleteEntity(entityType models.EntityType, entityID string, origin Origin) {
	name, err := r.model.DeleteEntity(entityType, entityID)
	if err != nil {
		r.reject(origin, "delete failed: "+err.Error())
		return
	}

	r.append(models.ChangeLogEntry{
		Action:       models.ActionDelete,
		EntityType:   entityType,
		EntityID:     entityID,
		PreviousName: name,
		GestureID:    uuid.New().String(),
	})

	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureCreateOrDelete, models.RestructureCreateOrDeleteMessage{
			Action:     models.ActionDelete,
			EntityType: entityType,
			EntityID:   entityID,
		})
	}
}

// CutAndInsert moves an entity under a new parent. The previous parent is
// resolved before the move and kept as the undo destination.
func (r *Replicator) CutAndInsert(clipped models.EntityType, clippedID string, destination models.EntityType, destinationID string, origin Origin) {
	sourceID, err := r.model.ParentOf(clipped, clippedID)
	if err != nil {
		r.reject(origin, "cut and insert failed: "+err.Error())
		return
	}
	if err := r.model.CutAndInsert(clipped, clippedID, destinationID); err != nil {
		r.reject(origin, "cut and insert failed: "+err.Error())
		return
	}

	r.append(models.ChangeLogEntry{
		Action:        models.ActionCutInsert,
		EntityType:    clipped,
		EntityID:      clippedID,
		SourceID:      sourceID,
		DestinationID: destinationID,
		GestureID:     uuid.New().String(),
	})

	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureCutAndInsert, models.RestructureCutAndInsertMessage{
			DestinationEntity: destination,
			DestinationID:     destinationID,
			ClippedEntity:     clipped,
			ClippedEntityID:   clippedID,
		})
	}
}

// AddCommunication adds a class-to-class communication. Communications are not
// undoable, so no changelog entry is written.
func (r *Replicator) AddCommunication(sourceClassID, targetClassID, methodName string, origin Origin) {
	if methodName == "" {
		r.reject(origin, "method name is required")
		return
	}
	if err := r.model.AddCommunication(sourceClassID, targetClassID, methodName); err != nil {
		r.reject(origin, "add communication failed: "+err.Error())
		return
	}
	if !origin.IsRemote() {
		r.relay.Send(models.EventRestructureCommunication, models.RestructureCommunicationMessage{
			SourceClassID: sourceClassID,
			TargetClassID: targetClassID,
			MethodName:    methodName,
		})
	}
}

// Entries returns a copy of the changelog, oldest first
func (r *Replicator) Entries() []models.ChangeLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChangeLogEntry(nil), r.changelog...)
}

// UndoEntry reverses one changelog entry. When the entry belongs to a CREATE
// bundle the whole bundle is reversed in reverse order; the log either loses
// the entire bundle or stays untouched.
func (r *Replicator) UndoEntry(entry models.ChangeLogEntry) {
	r.mu.Lock()
	start, end := r.bundleBounds(entry)
	if start < 0 {
		r.mu.Unlock()
		return
	}
	bundle := append([]models.ChangeLogEntry(nil), r.changelog[start:end]...)
	r.mu.Unlock()

	for i := len(bundle) - 1; i >= 0; i-- {
		if err := r.reverse(bundle[i]); err != nil {
			r.notifier.ShowError("undo failed: " + err.Error())
			return
		}
	}

	r.mu.Lock()
	r.changelog = append(r.changelog[:start], r.changelog[end:]...)
	r.mu.Unlock()
}

// bundleBounds must be called with r.mu held. It locates the entry and, for
// CREATE entries, widens the range to every contiguous entry sharing its
// gesture id. Returns start=-1 when the entry is no longer in the log.
func (r *Replicator) bundleBounds(entry models.ChangeLogEntry) (start, end int) {
	idx := -1
	for i, e := range r.changelog {
		if e == entry {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, -1
	}
	start, end = idx, idx+1
	if entry.Action != models.ActionCreate {
		return start, end
	}
	for start > 0 && r.changelog[start-1].GestureID == entry.GestureID {
		start--
	}
	for end < len(r.changelog) && r.changelog[end].GestureID == entry.GestureID {
		end++
	}
	return start, end
}

// reverse applies the inverse mutation of one entry and broadcasts it so every
// client converges. Reversals never write new changelog entries.
func (r *Replicator) reverse(entry models.ChangeLogEntry) error {
	switch entry.Action {
	case models.ActionCreate:
		if _, err := r.model.DeleteEntity(entry.EntityType, entry.EntityID); err != nil {
			return err
		}
		r.relay.Send(models.EventRestructureCreateOrDelete, models.RestructureCreateOrDeleteMessage{
			Action:     models.ActionDelete,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
		})
	case models.ActionRename:
		if err := r.renameBack(entry); err != nil {
			return err
		}
		r.relay.Send(models.EventRestructureUpdate, models.RestructureUpdateMessage{
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			NewName:    entry.PreviousName,
		})
	case models.ActionDelete:
		if err := r.model.UndeleteEntity(entry.EntityType, entry.EntityID, entry.PreviousName); err != nil {
			return err
		}
		r.relay.Send(models.EventRestructureCreateOrDelete, models.RestructureCreateOrDeleteMessage{
			Action:     models.ActionCreate,
			EntityType: entry.EntityType,
			Name:       entry.PreviousName,
			EntityID:   entry.EntityID,
		})
	case models.ActionCutInsert:
		if err := r.model.CutAndInsert(entry.EntityType, entry.EntityID, entry.SourceID); err != nil {
			return err
		}
		r.relay.Send(models.EventRestructureCutAndInsert, models.RestructureCutAndInsertMessage{
			DestinationID:   entry.SourceID,
			ClippedEntity:   entry.EntityType,
			ClippedEntityID: entry.EntityID,
		})
	}
	return nil
}

func (r *Replicator) renameBack(entry models.ChangeLogEntry) error {
	var err error
	switch entry.EntityType {
	case models.EntityApp:
		_, err = r.model.RenameApplication(entry.EntityID, entry.PreviousName)
	case models.EntityPackage:
		_, err = r.model.RenamePackage(entry.EntityID, entry.PreviousName)
	case models.EntitySubPackage:
		_, err = r.model.RenameSubPackage(entry.EntityID, entry.PreviousName)
	case models.EntityClass:
		_, err = r.model.RenameClass(entry.EntityID, entry.PreviousName)
	}
	return err
}

func (r *Replicator) append(entries ...models.ChangeLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changelog = append(r.changelog, entries...)
}

// reject surfaces a validation failure. Local failures block before any
// message is sent; remote ones are logged and dropped.
func (r *Replicator) reject(origin Origin, reason string) {
	if origin.IsRemote() {
		zap.S().Warnw("dropping invalid remote mutation", "sender", origin.SenderID(), "reason", reason)
		return
	}
	r.notifier.ShowError(reason)
}
