package collab

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/landviz/collab-api/models"
)

type fakeCamera struct {
	mu         sync.Mutex
	pose       models.Pose
	c1, c2     *models.Pose
	projection [16]float64
	controls   bool
	teleports  int
}

func (f *fakeCamera) Pose() models.Pose {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pose
}

func (f *fakeCamera) SetPose(pose models.Pose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pose = pose
}

func (f *fakeCamera) Teleport(pose models.Pose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pose = pose
	f.teleports++
}

func (f *fakeCamera) ControllerPoses() (*models.Pose, *models.Pose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.c1, f.c2
}

func (f *fakeCamera) ProjectionMatrix() [16]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projection
}

func (f *fakeCamera) SetProjectionMatrix(matrix [16]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projection = matrix
}

func (f *fakeCamera) ControlsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controls
}

func (f *fakeCamera) SetControlsEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = enabled
}

type fakeModel struct {
	mu             sync.Mutex
	names          map[string]string
	parents        map[string]string
	deleted        map[string]bool
	nextID         int
	communications int
	mousePings     int
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		names:   make(map[string]string),
		parents: make(map[string]string),
		deleted: make(map[string]bool),
	}
}

func (f *fakeModel) rename(id, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.names[id]
	if !ok {
		prev = "unnamed"
	}
	f.names[id] = name
	return prev, nil
}

func (f *fakeModel) RenameApplication(id, name string) (string, error) { return f.rename(id, name) }
func (f *fakeModel) RenamePackage(id, name string) (string, error) { return f.rename(id, name) }
func (f *fakeModel) RenameSubPackage(id, name string) (string, error) { return f.rename(id, name) }
func (f *fakeModel) RenameClass(id, name string) (string, error) { return f.rename(id, name) }

func (f *fakeModel) CreateApplication(name, language string) (CreatedApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := CreatedApplication{
		AppID:     fmt.Sprintf("app-%d", f.nextID),
		PackageID: fmt.Sprintf("pkg-%d", f.nextID),
		ClassID:   fmt.Sprintf("class-%d", f.nextID),
	}
	f.names[created.AppID] = name
	return created, nil
}

func (f *fakeModel) createChild(parentID, name, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("%s-%d", prefix, f.nextID)
	f.names[id] = name
	f.parents[id] = parentID
	return id, nil
}

func (f *fakeModel) CreatePackage(parentID, name string) (string, error) {
	return f.createChild(parentID, name, "pkg")
}

func (f *fakeModel) CreateSubPackage(parentID, name string) (string, error) {
	return f.createChild(parentID, name, "subpkg")
}

func (f *fakeModel) CreateClass(parentID, name string) (string, error) {
	return f.createChild(parentID, name, "class")
}

func (f *fakeModel) DeleteEntity(entityType models.EntityType, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[id]
	if !ok {
		name = "unnamed"
	}
	f.deleted[id] = true
	return name, nil
}

func (f *fakeModel) UndeleteEntity(entityType models.EntityType, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deleted, id)
	f.names[id] = name
	return nil
}

func (f *fakeModel) ParentOf(entityType models.EntityType, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, ok := f.parents[id]
	if !ok {
		parent = "root"
	}
	return parent, nil
}

func (f *fakeModel) CutAndInsert(clipped models.EntityType, clippedID, destinationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parents[clippedID] = destinationID
	return nil
}

func (f *fakeModel) AddCommunication(sourceClassID, targetClassID, methodName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.communications++
	return nil
}

func (f *fakeModel) ApplyMousePing(modelID string, position [3]float64, isRestartable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mousePings++
}

func (f *fakeModel) ApplyComponentUpdate(appID, componentID string, isFoundation, isOpened bool) {}

func (f *fakeModel) ApplyHighlighting(appID string, entityType models.EntityType, entityID string, isHighlighted bool) {
}

func (f *fakeModel) isDeleted(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[id]
}

func (f *fakeModel) nameOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[id]
}

func (f *fakeModel) parentOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parents[id]
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (f *fakeNotifier) ShowInfo(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, message)
}

func (f *fakeNotifier) ShowError(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}

func (f *fakeNotifier) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

// captureRelay runs a websocket endpoint that records every envelope a relay
// client writes. Close the returned server when done.
func captureRelay(t *testing.T) (*httptest.Server, <-chan models.Envelope) {
	t.Helper()
	frames := make(chan models.Envelope, 64)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env models.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- env
		}
	}))
	return srv, frames
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForEnvelope(t *testing.T, frames <-chan models.Envelope) models.Envelope {
	t.Helper()
	select {
	case env := <-frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a relay frame")
		return models.Envelope{}
	}
}

func onlineSession(localID, localName string, isHost bool, remotes ...models.UserSnapshot) *Session {
	s := NewSession()
	s.SetConnecting()
	s.SetOnline(models.UserSnapshot{
		ID:     localID,
		Name:   localName,
		IsHost: isHost,
	}, models.ModeBrowser, remotes)
	return s
}

func unmarshalEnvelope(env models.Envelope, v interface{}) error {
	return json.Unmarshal(env.Message, v)
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
