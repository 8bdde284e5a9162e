package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landviz/collab-api/models"
)

func newSpectateFixture(mode models.VisualizationMode) (*SpectateCoordinator, *Session, *fakeCamera, *fakeNotifier) {
	session := NewSession()
	session.SetConnecting()
	session.SetOnline(models.UserSnapshot{ID: "u1", Name: "alice"}, mode, []models.UserSnapshot{
		{ID: "u2", Name: "bob"},
		{ID: "u3", Name: "carol"},
	})
	camera := &fakeCamera{
		projection: [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		controls:   true,
	}
	notifier := &fakeNotifier{}
	sp := NewSpectateCoordinator(NewRelayClient(), session, camera, notifier, "device-1")
	return sp, session, camera, notifier
}

func TestActivateDeactivateRoundTrip(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)
	target := session.LookupByID("u2")

	originalProjection := camera.ProjectionMatrix()

	sp.Activate(target)
	assert.True(t, sp.IsSpectating())
	assert.Equal(t, "u2", sp.SpectatedUserID())
	assert.False(t, camera.ControlsEnabled())
	assert.False(t, target.HMDVisible)

	sp.Deactivate()
	assert.False(t, sp.IsSpectating())
	assert.True(t, camera.ControlsEnabled())
	assert.Equal(t, originalProjection, camera.ProjectionMatrix())
	assert.True(t, target.HMDVisible)
}

func TestActivateSelfIsRejected(t *testing.T) {
	sp, _, camera, notifier := newSpectateFixture(models.ModeBrowser)

	sp.Activate(&RemoteUser{ID: "u1", Name: "alice"})
	assert.False(t, sp.IsSpectating())
	assert.True(t, camera.ControlsEnabled())
	assert.Equal(t, 1, notifier.errorCount())
}

func TestActivateRejectsSpectateCycle(t *testing.T) {
	sp, session, _, notifier := newSpectateFixture(models.ModeBrowser)

	// u2 starts spectating this client
	sp.HandleSpectatingUpdate("u2", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u1",
		SpectatingUserIDs: []string{"u2"},
	})
	assert.True(t, sp.HasSpectators())

	// following u2 back would close the loop
	sp.Activate(session.LookupByID("u2"))
	assert.False(t, sp.IsSpectating())
	assert.Equal(t, 1, notifier.errorCount())
}

func TestInboundUpdateRecordsObserver(t *testing.T) {
	sp, _, camera, _ := newSpectateFixture(models.ModeBrowser)

	sp.HandleSpectatingUpdate("u2", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u1",
		SpectatingUserIDs: []string{"u2"},
	})

	assert.Equal(t, []string{"u2"}, sp.SpectatorIDs())
	// being watched never touches the local camera
	assert.True(t, camera.ControlsEnabled())
	assert.False(t, sp.IsSpectating())
}

func TestInboundUpdatePullsLocalClientIntoSpectate(t *testing.T) {
	sp, _, camera, _ := newSpectateFixture(models.ModeBrowser)

	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u2",
		SpectatingUserIDs: []string{"u1"},
	})

	assert.True(t, sp.IsSpectating())
	assert.Equal(t, "u2", sp.SpectatedUserID())
	assert.False(t, camera.ControlsEnabled())
}

func TestInboundUpdateMarksSenderSpectating(t *testing.T) {
	sp, session, _, _ := newSpectateFixture(models.ModeBrowser)

	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u2",
		SpectatingUserIDs: []string{"u3"},
	})

	assert.False(t, sp.IsSpectating())
	assert.Equal(t, models.StateSpectating, session.LookupByID("u3").State)
}

func TestInboundStopUpdateReleasesObserversAndLocalSpectate(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)

	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u2",
		SpectatingUserIDs: []string{"u1"},
	})
	assert.True(t, sp.IsSpectating())

	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      false,
		SpectatedUserID:   "u2",
		SpectatingUserIDs: []string{"u1"},
	})
	assert.False(t, sp.IsSpectating())
	assert.True(t, camera.ControlsEnabled())
	assert.Equal(t, models.StateOnline, session.LookupByID("u3").State)
}

func TestInboundUpdateUnknownTargetDeactivates(t *testing.T) {
	sp, session, _, _ := newSpectateFixture(models.ModeBrowser)
	sp.Activate(session.LookupByID("u2"))

	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "ghost",
		SpectatingUserIDs: []string{"u1"},
	})
	assert.False(t, sp.IsSpectating())
}

func TestTickCopiesTargetPose(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)
	target := session.LookupByID("u2")
	target.Camera = models.Pose{Position: [3]float64{1, 2, 3}, Quaternion: [4]float64{0, 0, 0, 1}}

	sp.Activate(target)
	sp.Tick()

	assert.Equal(t, target.Camera, camera.Pose())
	assert.Equal(t, 0, camera.teleports)
}

func TestTickTeleportsInVR(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeVR)
	target := session.LookupByID("u2")
	target.Camera = models.Pose{Position: [3]float64{4, 5, 6}}

	sp.Activate(target)
	sp.Tick()

	assert.Equal(t, target.Camera, camera.Pose())
	assert.Equal(t, 1, camera.teleports)
}

func TestTickDeactivatesWhenTargetVanished(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)
	sp.Activate(session.LookupByID("u2"))
	session.RemoveUser("u2")

	sp.Tick()
	assert.False(t, sp.IsSpectating())
	assert.True(t, camera.ControlsEnabled())
}

func TestHandleUserDisconnectedDropsObserverAndTarget(t *testing.T) {
	sp, session, _, _ := newSpectateFixture(models.ModeBrowser)

	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u1",
		SpectatingUserIDs: []string{"u3"},
	})
	sp.Activate(session.LookupByID("u2"))

	sp.HandleUserDisconnected("u3")
	assert.False(t, sp.HasSpectators())

	sp.HandleUserDisconnected("u2")
	assert.False(t, sp.IsSpectating())
}

func TestRemoveSpectatorAbsentIsNoOp(t *testing.T) {
	sp, _, _, _ := newSpectateFixture(models.ModeBrowser)
	sp.RemoveSpectator("never-there")
	assert.False(t, sp.HasSpectators())
}

func TestResetClearsEverythingWithoutBroadcast(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)
	sp.Activate(session.LookupByID("u2"))
	sp.HandleSpectatingUpdate("u3", models.SpectatingUpdateMessage{
		IsSpectating:      true,
		SpectatedUserID:   "u1",
		SpectatingUserIDs: []string{"u3"},
	})

	sp.Reset()
	assert.False(t, sp.IsSpectating())
	assert.False(t, sp.HasSpectators())
	assert.True(t, camera.ControlsEnabled())
	assert.Equal(t, DefaultConfigID, sp.ActiveConfigID())
}

func TestActivateWithConfigurationAppliesDeviceProjection(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)
	preset := [16]float64{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 1}

	sp.ActivateWithConfiguration(session.LookupByID("u2"), &models.SpectateConfiguration{
		Name: "kiosk-wall",
		Devices: []models.DeviceConfiguration{
			{DeviceID: "device-1", ProjectionMatrix: preset},
			{DeviceID: "device-2"},
		},
	})

	assert.Equal(t, preset, camera.ProjectionMatrix())
	assert.Equal(t, "kiosk-wall", sp.ActiveConfigID())

	sp.Deactivate()
	assert.Equal(t, DefaultConfigID, sp.ActiveConfigID())
}

func TestConfigurationWithoutMatchingDeviceKeepsProjection(t *testing.T) {
	sp, session, camera, _ := newSpectateFixture(models.ModeBrowser)
	original := camera.ProjectionMatrix()

	sp.ActivateWithConfiguration(session.LookupByID("u2"), &models.SpectateConfiguration{
		Name:    "other-room",
		Devices: []models.DeviceConfiguration{{DeviceID: "device-9"}},
	})

	assert.Equal(t, original, camera.ProjectionMatrix())
}
