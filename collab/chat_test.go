package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landviz/collab-api/models"
)

func newChatFixture(isHost bool) (*ChatService, *Session, *fakeNotifier) {
	session := onlineSession("u1", "alice", isHost, models.UserSnapshot{ID: "u2", Name: "bob"})
	notifier := &fakeNotifier{}
	chat := NewChatService(NewRelayClient(), session, notifier)
	return chat, session, notifier
}

func TestSendMessageOfflineAssignsLocalIDs(t *testing.T) {
	session := NewSession()
	chat := NewChatService(NewRelayClient(), session, &fakeNotifier{})

	chat.SendMessage("hello", false, "", nil)
	chat.SendMessage("world", false, "", nil)

	msgs := chat.Messages()
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, -1, msgs[0].MsgID)
		assert.Equal(t, -2, msgs[1].MsgID)
	}
	assert.Equal(t, StatusOffline, session.Status())
}

func TestOnlineEchoSurvivesOfflineChatHistory(t *testing.T) {
	session := NewSession()
	chat := NewChatService(NewRelayClient(), session, &fakeNotifier{})

	chat.SendMessage("offline one", false, "", nil)
	chat.SendMessage("offline two", false, "", nil)

	session.SetConnecting()
	session.SetOnline(models.UserSnapshot{ID: "u1", Name: "alice"}, models.ModeBrowser, []models.UserSnapshot{
		{ID: "u2", Name: "bob"},
	})

	// the relay restarts its msgId sequence at 1 for every session; the echo
	// must never be mistaken for an offline message
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "online hello"})
	chat.AddChatMessage(models.ChatMessage{MsgID: 2, UserID: "u2", Message: "online again"})

	msgs := chat.Messages()
	if assert.Len(t, msgs, 4) {
		assert.Equal(t, "offline one", msgs[0].Message)
		assert.Equal(t, "online hello", msgs[2].Message)
		assert.Equal(t, 1, msgs[2].MsgID)
		assert.Equal(t, "online again", msgs[3].Message)
	}
}

func TestSendMessageOnlineDoesNotAppendLocally(t *testing.T) {
	chat, _, _ := newChatFixture(false)

	// online: the append happens only through the relay echo, and the relay
	// client here is offline so nothing comes back
	chat.SendMessage("hello", false, "", nil)
	assert.Len(t, chat.Messages(), 0)
}

func TestSendEmptyMessageRejected(t *testing.T) {
	chat, _, notifier := newChatFixture(false)
	chat.SendMessage("", false, "", nil)
	assert.Equal(t, 1, notifier.errorCount())
	assert.Len(t, chat.Messages(), 0)
}

func TestAddChatMessageDeduplicatesByMsgID(t *testing.T) {
	chat, _, _ := newChatFixture(false)

	msg := models.ChatMessage{MsgID: 7, UserID: "u2", Message: "hi"}
	chat.AddChatMessage(msg)
	chat.AddChatMessage(msg)
	chat.AddChatMessage(msg)

	assert.Len(t, chat.Messages(), 1)
}

func TestAddChatMessageRederivesNameFromRegistry(t *testing.T) {
	chat, _, _ := newChatFixture(false)

	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", UserName: "stale-name", Message: "hi"})

	msgs := chat.Messages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "bob", msgs[0].UserName)
	}
}

func TestRemoveMessagesRequiresHostLocally(t *testing.T) {
	chat, _, notifier := newChatFixture(false)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "hi"})

	chat.RemoveMessages([]int{1}, LocalOrigin())
	assert.Len(t, chat.Messages(), 1)
	assert.Equal(t, 1, notifier.errorCount())
}

func TestRemoveMessagesAsHost(t *testing.T) {
	chat, _, _ := newChatFixture(true)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "one"})
	chat.AddChatMessage(models.ChatMessage{MsgID: 2, UserID: "u2", Message: "two"})

	chat.RemoveMessages([]int{1}, LocalOrigin())

	msgs := chat.Messages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, 2, msgs[0].MsgID)
	}
}

func TestRemoveMessagesFromRemoteSkipsHostCheck(t *testing.T) {
	chat, _, notifier := newChatFixture(false)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "hi"})

	chat.RemoveMessages([]int{1}, RemoteOrigin("u2"))
	assert.Len(t, chat.Messages(), 0)
	assert.Equal(t, 0, notifier.errorCount())
}

func TestToggleMuteIsInvolution(t *testing.T) {
	chat, _, _ := newChatFixture(true)

	chat.ToggleMute("u2")
	assert.True(t, chat.IsMuted("u2"))

	chat.ToggleMute("u2")
	assert.False(t, chat.IsMuted("u2"))
}

func TestToggleMuteRequiresHost(t *testing.T) {
	chat, _, notifier := newChatFixture(false)
	chat.ToggleMute("u2")
	assert.False(t, chat.IsMuted("u2"))
	assert.Equal(t, 1, notifier.errorCount())
}

func TestToggleMuteUnknownUserIsNoOp(t *testing.T) {
	chat, _, _ := newChatFixture(true)
	chat.ToggleMute("ghost")
	assert.False(t, chat.IsMuted("ghost"))
}

func TestFilteredMessagesHidesMutedSenders(t *testing.T) {
	chat, _, _ := newChatFixture(true)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "spam"})

	chat.ToggleMute("u2")
	assert.Len(t, chat.FilteredMessages(), 0)
	// the full log keeps the message, mute is a view concern
	assert.Len(t, chat.Messages(), 1)
}

func TestFilterChatByUserID(t *testing.T) {
	chat, _, _ := newChatFixture(false)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "from bob"})
	chat.AddChatMessage(models.ChatMessage{MsgID: 2, UserID: "u1", Message: "from alice"})

	chat.FilterChat(FilterByUserID, "bob(u2)")
	filtered := chat.FilteredMessages()
	if assert.Len(t, filtered, 1) {
		assert.Equal(t, "from bob", filtered[0].Message)
	}
}

func TestFilterChatByEvents(t *testing.T) {
	chat, _, _ := newChatFixture(false)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "plain"})
	chat.AddChatMessage(models.ChatMessage{MsgID: 2, UserID: "u2", IsEvent: true, EventType: "mute_event"})

	chat.FilterChat(FilterByEvents, "any")
	filtered := chat.FilteredMessages()
	if assert.Len(t, filtered, 1) {
		assert.True(t, filtered[0].IsEvent)
	}
}

func TestFilterChatResetsOnEmptyValue(t *testing.T) {
	chat, _, _ := newChatFixture(false)
	chat.AddChatMessage(models.ChatMessage{MsgID: 1, UserID: "u2", Message: "one"})
	chat.AddChatMessage(models.ChatMessage{MsgID: 2, UserID: "u1", Message: "two"})

	chat.FilterChat(FilterByUserID, "bob(u2)")
	assert.Len(t, chat.FilteredMessages(), 1)

	chat.FilterChat("", "")
	assert.Len(t, chat.FilteredMessages(), 2)
}
