package collab

import (
	"sync"

	"github.com/landviz/collab-api/models"
)

// PosePublisher samples the local camera and controllers each animation tick
// and broadcasts the pose, throttled to when somebody is actually watching.
// Dropped frames are fine, pose updates are last-value-wins.
type PosePublisher struct {
	mu       sync.Mutex
	relay    *RelayClient
	camera   CameraRig
	spectate *SpectateCoordinator

	lastCamera      models.Pose
	lastController1 *models.Pose
	lastController2 *models.Pose
	sampled         bool
}

// NewPosePublisher binds the publisher to the camera rig and the spectate
// coordinator it consults for the broadcast throttle
func NewPosePublisher(relay *RelayClient, camera CameraRig, spectate *SpectateCoordinator) *PosePublisher {
	return &PosePublisher{
		relay:    relay,
		camera:   camera,
		spectate: spectate,
	}
}

// Tick samples and broadcasts the local pose. Nothing is sent when no
// spectator follows this client, while this client spectates someone else, or
// when the pose is unchanged since the last broadcast sample.
func (p *PosePublisher) Tick() {
	// a spectating client's camera mirrors its target; that copy is never
	// rebroadcast as our own pose
	if p.spectate.IsSpectating() || !p.spectate.HasSpectators() {
		return
	}

	camera := p.camera.Pose()
	controller1, controller2 := p.camera.ControllerPoses()

	p.mu.Lock()
	unchanged := p.sampled &&
		camera == p.lastCamera &&
		posesEqual(controller1, p.lastController1) &&
		posesEqual(controller2, p.lastController2)
	if unchanged {
		p.mu.Unlock()
		return
	}
	p.lastCamera = camera
	p.lastController1 = copyPose(controller1)
	p.lastController2 = copyPose(controller2)
	p.sampled = true
	p.mu.Unlock()

	p.relay.Send(models.EventPoseUpdate, models.PoseUpdateMessage{
		Camera:      camera,
		Controller1: controller1,
		Controller2: controller2,
	})
}

// Reset forgets the last sample so the first tick after a reconnect always
// broadcasts
func (p *PosePublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampled = false
	p.lastController1 = nil
	p.lastController2 = nil
}

func posesEqual(a, b *models.Pose) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyPose(p *models.Pose) *models.Pose {
	if p == nil {
		return nil
	}
	dup := *p
	return &dup
}
