package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landviz/collab-api/models"
)

func newReplicatorFixture() (*Replicator, *fakeModel, *fakeNotifier) {
	model := newFakeModel()
	notifier := &fakeNotifier{}
	r := NewReplicator(NewRelayClient(), model, notifier)
	return r, model, notifier
}

func TestToggleRestructureMode(t *testing.T) {
	r, _, notifier := newReplicatorFixture()
	assert.False(t, r.RestructureMode())

	r.ToggleRestructureMode(LocalOrigin())
	assert.True(t, r.RestructureMode())

	r.ToggleRestructureMode(RemoteOrigin("u2"))
	assert.False(t, r.RestructureMode())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Len(t, notifier.infos, 2)
}

func TestRenameEntityRecordsPreviousName(t *testing.T) {
	r, model, _ := newReplicatorFixture()
	model.names["app-1"] = "shop"

	r.RenameEntity(models.EntityApp, "app-1", "store", "", LocalOrigin())

	assert.Equal(t, "store", model.nameOf("app-1"))
	entries := r.Entries()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, models.ActionRename, entries[0].Action)
		assert.Equal(t, "shop", entries[0].PreviousName)
		assert.Equal(t, "store", entries[0].NewName)
		assert.NotEmpty(t, entries[0].GestureID)
	}
}

func TestRenameEmptyNameRejectedLocally(t *testing.T) {
	r, _, notifier := newReplicatorFixture()
	r.RenameEntity(models.EntityApp, "app-1", "", "", LocalOrigin())
	assert.Equal(t, 1, notifier.errorCount())
	assert.Len(t, r.Entries(), 0)
}

func TestRenameEmptyNameFromRemoteDropsSilently(t *testing.T) {
	r, _, notifier := newReplicatorFixture()
	r.RenameEntity(models.EntityApp, "app-1", "", "", RemoteOrigin("u2"))
	assert.Equal(t, 0, notifier.errorCount())
	assert.Len(t, r.Entries(), 0)
}

func TestCreateApplicationBundleSharesGestureID(t *testing.T) {
	r, _, _ := newReplicatorFixture()
	r.CreateApplication("shop", "java", LocalOrigin())

	entries := r.Entries()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, models.EntityApp, entries[0].EntityType)
		assert.Equal(t, models.EntityPackage, entries[1].EntityType)
		assert.Equal(t, models.EntityClass, entries[2].EntityType)
		assert.Equal(t, entries[0].GestureID, entries[1].GestureID)
		assert.Equal(t, entries[0].GestureID, entries[2].GestureID)
	}
}

func TestUndoCreateApplicationBundleIsAtomic(t *testing.T) {
	r, model, _ := newReplicatorFixture()
	r.CreateApplication("shop", "java", LocalOrigin())
	entries := r.Entries()

	// undoing the middle entry takes the whole gesture with it
	r.UndoEntry(entries[1])

	assert.Len(t, r.Entries(), 0)
	assert.True(t, model.isDeleted(entries[0].EntityID))
	assert.True(t, model.isDeleted(entries[1].EntityID))
	assert.True(t, model.isDeleted(entries[2].EntityID))
}

func TestUndoCreateBundleLeavesNeighborsAlone(t *testing.T) {
	r, _, _ := newReplicatorFixture()
	r.CreateApplication("shop", "java", LocalOrigin())
	r.CreateChildEntity(models.EntityPackage, "app-1", "util", LocalOrigin())

	entries := r.Entries()
	assert.Len(t, entries, 4)

	r.UndoEntry(entries[0])

	remaining := r.Entries()
	if assert.Len(t, remaining, 1) {
		assert.Equal(t, "util", remaining[0].NewName)
	}
}

func TestUndoRenameRestoresPreviousName(t *testing.T) {
	r, model, _ := newReplicatorFixture()
	model.names["app-1"] = "shop"
	r.RenameEntity(models.EntityApp, "app-1", "store", "", LocalOrigin())

	r.UndoEntry(r.Entries()[0])

	assert.Equal(t, "shop", model.nameOf("app-1"))
	assert.Len(t, r.Entries(), 0)
}

func TestUndoDeleteRestoresEntity(t *testing.T) {
	r, model, _ := newReplicatorFixture()
	model.names["class-1"] = "OrderService"
	r.DeleteEntity(models.EntityClass, "class-1", LocalOrigin())
	assert.True(t, model.isDeleted("class-1"))

	r.UndoEntry(r.Entries()[0])

	assert.False(t, model.isDeleted("class-1"))
	assert.Equal(t, "OrderService", model.nameOf("class-1"))
	assert.Len(t, r.Entries(), 0)
}

func TestUndoCutInsertRestoresParent(t *testing.T) {
	r, model, _ := newReplicatorFixture()
	model.parents["pkg-1"] = "app-1"
	r.CutAndInsert(models.EntityPackage, "pkg-1", models.EntityApp, "app-2", LocalOrigin())
	assert.Equal(t, "app-2", model.parentOf("pkg-1"))

	r.UndoEntry(r.Entries()[0])

	assert.Equal(t, "app-1", model.parentOf("pkg-1"))
	assert.Len(t, r.Entries(), 0)
}

func TestUndoUnknownEntryIsNoOp(t *testing.T) {
	r, _, _ := newReplicatorFixture()
	r.CreateChildEntity(models.EntityClass, "pkg-1", "Foo", LocalOrigin())

	r.UndoEntry(models.ChangeLogEntry{Action: models.ActionRename, EntityID: "ghost"})
	assert.Len(t, r.Entries(), 1)
}

func TestAddCommunicationWritesNoChangelogEntry(t *testing.T) {
	r, model, _ := newReplicatorFixture()
	r.AddCommunication("class-1", "class-2", "checkout", LocalOrigin())

	model.mu.Lock()
	communications := model.communications
	model.mu.Unlock()
	assert.Equal(t, 1, communications)
	assert.Len(t, r.Entries(), 0)
}

func TestLocalMutationBroadcasts(t *testing.T) {
	srv, frames := captureRelay(t)
	defer srv.Close()

	relay := NewRelayClient()
	if err := relay.Connect(wsURL(srv)); err != nil {
		t.Fatal(err)
	}
	defer relay.Disconnect()

	r := NewReplicator(relay, newFakeModel(), &fakeNotifier{})
	r.RenameEntity(models.EntityApp, "app-1", "store", "", LocalOrigin())

	env := waitForEnvelope(t, frames)
	assert.Equal(t, models.EventRestructureUpdate, env.Event)
}

func TestRemoteMutationDoesNotRebroadcast(t *testing.T) {
	srv, frames := captureRelay(t)
	defer srv.Close()

	relay := NewRelayClient()
	if err := relay.Connect(wsURL(srv)); err != nil {
		t.Fatal(err)
	}
	defer relay.Disconnect()

	model := newFakeModel()
	r := NewReplicator(relay, model, &fakeNotifier{})
	r.CreateApplication("shop", "java", RemoteOrigin("u2"))
	assert.Len(t, r.Entries(), 3)

	// the marker is written after the mutation on the same connection, so if a
	// create frame had been sent it would arrive first
	relay.Send(models.EventMousePingUpdate, models.MousePingUpdateMessage{ModelID: "marker"})
	env := waitForEnvelope(t, frames)
	assert.Equal(t, models.EventMousePingUpdate, env.Event)
}
