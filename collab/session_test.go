package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landviz/collab-api/models"
)

func TestSessionStartsOffline(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StatusOffline, s.Status())
}

func TestSetConnectingOnlyFromOffline(t *testing.T) {
	s := NewSession()
	assert.True(t, s.SetConnecting())
	assert.False(t, s.SetConnecting())

	s.SetOnline(models.UserSnapshot{ID: "u1"}, models.ModeBrowser, nil)
	assert.False(t, s.SetConnecting())

	s.SetOffline()
	assert.True(t, s.SetConnecting())
}

func TestSetOnlineAppliesHandshake(t *testing.T) {
	s := NewSession()
	s.SetConnecting()
	s.SetOnline(models.UserSnapshot{ID: "u1", Name: "alice", IsHost: true}, models.ModeVR, []models.UserSnapshot{
		{ID: "u2", Name: "bob"},
	})

	assert.Equal(t, StatusOnline, s.Status())
	local := s.LocalUser()
	assert.Equal(t, "u1", local.ID)
	assert.Equal(t, "alice", local.Name)
	assert.True(t, local.IsHost)
	assert.Equal(t, models.ModeVR, local.Mode)

	bob := s.LookupByID("u2")
	if assert.NotNil(t, bob) {
		assert.Equal(t, "bob", bob.Name)
		assert.Equal(t, models.StateOnline, bob.State)
		assert.True(t, bob.HMDVisible)
	}
}

func TestRemoveUserIsIdempotent(t *testing.T) {
	s := onlineSession("u1", "alice", true, models.UserSnapshot{ID: "u2", Name: "bob"})

	s.RemoveUser("u2")
	assert.Nil(t, s.LookupByID("u2"))

	// removing an absent id must not panic or change anything
	s.RemoveUser("u2")
	s.RemoveUser("never-joined")
	assert.Len(t, s.AllRemoteUsers(), 0)
}

func TestLookupByIDUnknownReturnsNil(t *testing.T) {
	s := onlineSession("u1", "alice", false)
	assert.Nil(t, s.LookupByID("ghost"))
}

func TestPromoteToHost(t *testing.T) {
	s := onlineSession("u1", "alice", false)
	assert.False(t, s.LocalUser().IsHost)
	s.PromoteToHost()
	assert.True(t, s.LocalUser().IsHost)
}

func TestSetOfflineClearsRemoteUsers(t *testing.T) {
	s := onlineSession("u1", "alice", true,
		models.UserSnapshot{ID: "u2", Name: "bob"},
		models.UserSnapshot{ID: "u3", Name: "carol"},
	)
	assert.Len(t, s.AllRemoteUsers(), 2)

	s.SetOffline()
	assert.Equal(t, StatusOffline, s.Status())
	assert.Len(t, s.AllRemoteUsers(), 0)
}

func TestAddUserOverwritesStaleEntry(t *testing.T) {
	s := onlineSession("u1", "alice", true)
	s.AddUser(models.UserSnapshot{ID: "u2", Name: "bob"})
	s.AddUser(models.UserSnapshot{ID: "u2", Name: "bobby"})

	bob := s.LookupByID("u2")
	if assert.NotNil(t, bob) {
		assert.Equal(t, "bobby", bob.Name)
	}
	assert.Len(t, s.AllRemoteUsers(), 1)
}
