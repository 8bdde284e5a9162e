package collab

import (
	"sync"

	"github.com/landviz/collab-api/models"
)

// ConnectionStatus is the session registry state machine value
type ConnectionStatus string

// Registry connection states
const (
	StatusOffline    ConnectionStatus = "offline"
	StatusConnecting ConnectionStatus = "connecting"
	StatusOnline     ConnectionStatus = "online"
)

// LocalUser is the identity of this client within the session
type LocalUser struct {
	ID     string
	Name   string
	Color  models.Color
	IsHost bool
	Mode   models.VisualizationMode
}

// RemoteUser mirrors another session member. The pose fields are overwritten
// by every pose_update from that user; the struct is owned by the Session and
// read-only everywhere else.
type RemoteUser struct {
	ID          string
	Name        string
	Color       models.Color
	State       models.ConnectionState
	Camera      models.Pose
	Controller1 *models.Pose
	Controller2 *models.Pose
	HMDVisible  bool
}

// Session is the membership registry: the source of truth for which users this
// client currently knows about
type Session struct {
	mu     sync.Mutex
	status ConnectionStatus
	local  LocalUser
	remote map[string]*RemoteUser
}

// NewSession creates an offline session registry
func NewSession() *Session {
	return &Session{
		status: StatusOffline,
		remote: make(map[string]*RemoteUser),
	}
}

// Status returns the current connection status
func (s *Session) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LocalUser returns a copy of the local identity
func (s *Session) LocalUser() LocalUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// SetConnecting marks the join/host intent; only valid from offline
func (s *Session) SetConnecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusOffline {
		return false
	}
	s.status = StatusConnecting
	return true
}

// SetOnline applies the join handshake: local identity, host flag and the
// initial remote-user snapshot
func (s *Session) SetOnline(self models.UserSnapshot, mode models.VisualizationMode, users []models.UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusOnline
	s.local = LocalUser{
		ID:     self.ID,
		Name:   self.Name,
		Color:  self.Color,
		IsHost: self.IsHost,
		Mode:   mode,
	}
	for _, u := range users {
		s.remote[u.ID] = newRemoteUser(u)
	}
}

// PromoteToHost flips the host flag after a host migration handshake
func (s *Session) PromoteToHost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local.IsHost = true
}

// SetOffline clears the remote-user map and returns to the offline state. The
// caller cascades this into the other components.
func (s *Session) SetOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusOffline
	s.remote = make(map[string]*RemoteUser)
}

// AddUser registers a remote user; adding an already known id overwrites the
// stale entry
func (s *Session) AddUser(u models.UserSnapshot) *RemoteUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	ru := newRemoteUser(u)
	s.remote[u.ID] = ru
	return ru
}

// RemoveUser drops a remote user; removing an absent id is a no-op
func (s *Session) RemoveUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remote, id)
}

// LookupByID resolves a user id, returning nil when the user is unknown
func (s *Session) LookupByID(id string) *RemoteUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote[id]
}

// AllRemoteUsers returns the current remote users in no particular order
func (s *Session) AllRemoteUsers() []*RemoteUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*RemoteUser, 0, len(s.remote))
	for _, u := range s.remote {
		users = append(users, u)
	}
	return users
}

func newRemoteUser(u models.UserSnapshot) *RemoteUser {
	state := u.State
	if state == "" {
		state = models.StateOnline
	}
	return &RemoteUser{
		ID:         u.ID,
		Name:       u.Name,
		Color:      u.Color,
		State:      state,
		HMDVisible: true,
	}
}
