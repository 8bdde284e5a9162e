package collab

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/landviz/collab-api/models"
)

// DefaultConfigID is the projection configuration used when no operator preset
// is active
const DefaultConfigID = "default"

// SpectateCoordinator decides whose pose this client follows and tracks which
// remote users are following this client. Both roles can be active at once.
type SpectateCoordinator struct {
	mu       sync.Mutex
	relay    *RelayClient
	session  *Session
	camera   CameraRig
	notifier Notifier
	deviceID string

	spectatedUserID string
	spectators      map[string]struct{}
	activeConfigID  string

	active          bool
	savedProjection [16]float64
	savedControlsOn bool
}

// NewSpectateCoordinator wires the coordinator against the session registry
// and camera rig
func NewSpectateCoordinator(relay *RelayClient, session *Session, camera CameraRig, notifier Notifier, deviceID string) *SpectateCoordinator {
	return &SpectateCoordinator{
		relay:          relay,
		session:        session,
		camera:         camera,
		notifier:       notifier,
		deviceID:       deviceID,
		spectators:     make(map[string]struct{}),
		activeConfigID: DefaultConfigID,
	}
}

// Activate starts spectating the given remote user and announces it
func (sp *SpectateCoordinator) Activate(target *RemoteUser) {
	sp.ActivateWithConfiguration(target, nil)
}

// ActivateWithConfiguration starts spectating with an operator projection
// preset attached; the preset rides along on the broadcast so every listed
// observer applies its own device entry
func (sp *SpectateCoordinator) ActivateWithConfiguration(target *RemoteUser, cfg *models.SpectateConfiguration) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.activate(target, cfg, true)
}

// activate must be called with sp.mu held
func (sp *SpectateCoordinator) activate(target *RemoteUser, cfg *models.SpectateConfiguration, sendUpdate bool) {
	if target == nil {
		return
	}
	local := sp.session.LocalUser()
	if target.ID == local.ID {
		sp.notifier.ShowError("cannot spectate yourself")
		return
	}
	// spectate chains are a should-not-happen precondition; break the cycle
	// here instead of guessing a resolution order
	if _, watchingUs := sp.spectators[target.ID]; watchingUs {
		sp.notifier.ShowError("cannot spectate a user that is spectating you")
		return
	}
	if sp.spectatedUserID == target.ID {
		return
	}
	if sp.spectatedUserID != "" {
		// switching targets: release the previous one without a broadcast, the
		// update below supersedes it
		if prev := sp.session.LookupByID(sp.spectatedUserID); prev != nil {
			prev.HMDVisible = true
		}
	}

	if !sp.active {
		sp.savedProjection = sp.camera.ProjectionMatrix()
		sp.savedControlsOn = sp.camera.ControlsEnabled()
		sp.active = true
	}
	sp.camera.SetControlsEnabled(false)
	target.HMDVisible = false
	sp.spectatedUserID = target.ID

	if cfg != nil {
		sp.applyConfiguration(cfg)
	}

	if sendUpdate {
		sp.relay.Send(models.EventSpectatingUpdate, models.SpectatingUpdateMessage{
			IsSpectating:      true,
			SpectatedUserID:   target.ID,
			SpectatingUserIDs: []string{local.ID},
			Configuration:     cfg,
		})
	}
}

// Deactivate stops spectating, restores the camera and announces the change
func (sp *SpectateCoordinator) Deactivate() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.deactivate(true)
}

// deactivate must be called with sp.mu held
func (sp *SpectateCoordinator) deactivate(sendUpdate bool) {
	if sp.active {
		sp.camera.SetProjectionMatrix(sp.savedProjection)
		sp.camera.SetControlsEnabled(sp.savedControlsOn)
		sp.active = false
	}
	if sp.spectatedUserID != "" {
		if target := sp.session.LookupByID(sp.spectatedUserID); target != nil {
			target.HMDVisible = true
		}
		if sendUpdate {
			local := sp.session.LocalUser()
			sp.relay.Send(models.EventSpectatingUpdate, models.SpectatingUpdateMessage{
				IsSpectating:      false,
				SpectatedUserID:   sp.spectatedUserID,
				SpectatingUserIDs: []string{local.ID},
			})
		}
	}
	sp.spectatedUserID = ""
	sp.activeConfigID = DefaultConfigID
}

// HandleSpectatingUpdate reconciles local state against an inbound update
func (sp *SpectateCoordinator) HandleSpectatingUpdate(senderID string, msg models.SpectatingUpdateMessage) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	local := sp.session.LocalUser()

	if !msg.IsSpectating {
		for _, id := range msg.SpectatingUserIDs {
			delete(sp.spectators, id)
		}
		if sender := sp.session.LookupByID(senderID); sender != nil {
			sender.State = models.StateOnline
		}
		for _, id := range msg.SpectatingUserIDs {
			if id == local.ID {
				sp.deactivate(false)
				break
			}
		}
		return
	}

	// this client is the spectated target: record the observers, camera stays
	// untouched
	if msg.SpectatedUserID == local.ID {
		for _, id := range msg.SpectatingUserIDs {
			sp.addSpectator(id)
		}
		return
	}

	target := sp.session.LookupByID(msg.SpectatedUserID)
	if target == nil {
		// target vanished before the update arrived
		sp.deactivate(false)
		return
	}

	for _, id := range msg.SpectatingUserIDs {
		if id == local.ID {
			// an update we are part of, e.g. an operator pulling this client
			// into a spectate group: follow without re-broadcasting
			sp.activate(target, msg.Configuration, false)
			return
		}
	}

	if sender := sp.session.LookupByID(senderID); sender != nil {
		sender.State = models.StateSpectating
	}
}

// HandleUserDisconnected drops the user from the observer set and deactivates
// when the spectated target is gone
func (sp *SpectateCoordinator) HandleUserDisconnected(id string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	delete(sp.spectators, id)
	if sp.spectatedUserID == id {
		sp.deactivate(false)
	}
}

// Tick copies the spectated user's camera pose onto the local camera. VR mode
// teleports instead so room-scale offsets survive.
func (sp *SpectateCoordinator) Tick() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.spectatedUserID == "" {
		return
	}
	target := sp.session.LookupByID(sp.spectatedUserID)
	if target == nil {
		sp.deactivate(false)
		return
	}
	if sp.session.LocalUser().Mode == models.ModeVR {
		sp.camera.Teleport(target.Camera)
	} else {
		sp.camera.SetPose(target.Camera)
	}
}

// Reset clears all spectate state without broadcasting; used when the session
// drops offline
func (sp *SpectateCoordinator) Reset() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.active {
		sp.camera.SetProjectionMatrix(sp.savedProjection)
		sp.camera.SetControlsEnabled(sp.savedControlsOn)
		sp.active = false
	}
	sp.spectatedUserID = ""
	sp.spectators = make(map[string]struct{})
	sp.activeConfigID = DefaultConfigID
}

// RemoveSpectator drops one observer id; removing an absent id is a no-op
func (sp *SpectateCoordinator) RemoveSpectator(id string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	delete(sp.spectators, id)
}

// IsSpectating reports whether this client currently follows another user
func (sp *SpectateCoordinator) IsSpectating() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.spectatedUserID != ""
}

// SpectatedUserID returns the id of the followed user, or empty
func (sp *SpectateCoordinator) SpectatedUserID() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.spectatedUserID
}

// HasSpectators reports whether anyone is currently following this client
func (sp *SpectateCoordinator) HasSpectators() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.spectators) > 0
}

// SpectatorIDs returns the sorted observer ids
func (sp *SpectateCoordinator) SpectatorIDs() []string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	ids := make([]string, 0, len(sp.spectators))
	for id := range sp.spectators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveConfigID returns the name of the applied projection preset
func (sp *SpectateCoordinator) ActiveConfigID() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.activeConfigID
}

// addSpectator must be called with sp.mu held; a user never observes itself
func (sp *SpectateCoordinator) addSpectator(id string) {
	if id == sp.session.LocalUser().ID {
		return
	}
	sp.spectators[id] = struct{}{}
}

// applyConfiguration must be called with sp.mu held. Only the entry matching
// this client's deviceId applies; unknown devices keep their projection.
func (sp *SpectateCoordinator) applyConfiguration(cfg *models.SpectateConfiguration) {
	sp.activeConfigID = cfg.Name
	for _, device := range cfg.Devices {
		if device.DeviceID == sp.deviceID {
			sp.camera.SetProjectionMatrix(device.ProjectionMatrix)
			return
		}
	}
	zap.S().Debugw("no projection preset for this device", "config", cfg.Name, "deviceId", sp.deviceID)
}
