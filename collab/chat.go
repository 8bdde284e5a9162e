package collab

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/landviz/collab-api/models"
)

// Chat filter modes accepted by FilterChat
const (
	FilterByUserID = "UserId"
	FilterByEvents = "Events"
)

// ChatService keeps the append-only session chat log, the local-only mute set
// and a derived filtered view. MsgIds are authoritative from the relay while
// online; offline messages get a negative local sequence so the two id spaces
// never overlap.
type ChatService struct {
	mu       sync.Mutex
	relay    *RelayClient
	session  *Session
	notifier Notifier

	messages    []models.ChatMessage
	seen        map[int]struct{}
	muted       map[string]struct{}
	filterMode  string
	filterValue string
	nextLocalID int
}

// NewChatService creates an empty chat log bound to the session registry
func NewChatService(relay *RelayClient, session *Session, notifier Notifier) *ChatService {
	return &ChatService{
		relay:       relay,
		session:     session,
		notifier:    notifier,
		seen:        make(map[int]struct{}),
		muted:       make(map[string]struct{}),
		nextLocalID: 1,
	}
}

// SendMessage submits a chat message. Offline it is appended immediately with
// a locally assigned id; online the append happens only when the relay echo
// arrives, which is how the sender learns the authoritative msgId.
func (c *ChatService) SendMessage(text string, isEvent bool, eventType string, eventData []interface{}) {
	if text == "" && !isEvent {
		c.notifier.ShowError("cannot send an empty chat message")
		return
	}
	local := c.session.LocalUser()
	msg := models.ChatMessage{
		UserID:    local.ID,
		UserName:  local.Name,
		Color:     local.Color,
		Timestamp: time.Now().UnixMilli(),
		Message:   text,
		IsEvent:   isEvent,
		EventType: eventType,
		EventData: eventData,
	}

	if c.session.Status() != StatusOnline {
		c.mu.Lock()
		// relay msgIds start at 1 on every join, so offline ids count down
		// from -1 to keep a later echo from colliding with them
		msg.MsgID = -c.nextLocalID
		c.nextLocalID++
		c.mu.Unlock()
		c.AddChatMessage(msg)
		return
	}
	c.relay.Send(models.EventChatMessage, msg)
}

// AddChatMessage appends one message to the log. Appending is keyed by msgId:
// duplicate deliveries are idempotent. Name and color are re-derived from the
// current registry state so renamed users display correctly.
func (c *ChatService) AddChatMessage(msg models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[msg.MsgID]; dup {
		zap.S().Debugw("dropping duplicate chat message", "msgId", msg.MsgID)
		return
	}
	if local := c.session.LocalUser(); msg.UserID == local.ID {
		msg.UserName = local.Name
		msg.Color = local.Color
	} else if sender := c.session.LookupByID(msg.UserID); sender != nil {
		msg.UserName = sender.Name
		msg.Color = sender.Color
	}
	c.seen[msg.MsgID] = struct{}{}
	c.messages = append(c.messages, msg)
}

// RemoveMessages deletes messages by id. Locally initiated deletes require
// host authority and are broadcast; deletes received from the relay are
// applied without re-broadcasting to prevent delete storms.
func (c *ChatService) RemoveMessages(ids []int, origin Origin) {
	if !origin.IsRemote() && !c.session.LocalUser().IsHost {
		c.notifier.ShowError("only the host can delete chat messages")
		return
	}
	c.mu.Lock()
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := c.messages[:0]
	for _, msg := range c.messages {
		if drop[msg.MsgID] {
			delete(c.seen, msg.MsgID)
			continue
		}
		kept = append(kept, msg)
	}
	c.messages = kept
	c.mu.Unlock()

	if !origin.IsRemote() {
		c.relay.Send(models.EventMessageDelete, models.MessageDeleteMessage{MsgIDs: ids})
	}
}

// ToggleMute flips a user's membership in the local-only mute set. The mute
// itself is never replicated; a synthetic chat event is sent so every client
// sees an audit trail.
func (c *ChatService) ToggleMute(userID string) {
	if !c.session.LocalUser().IsHost {
		c.notifier.ShowError("only the host can mute users")
		return
	}
	user := c.session.LookupByID(userID)
	if user == nil {
		return
	}

	c.mu.Lock()
	_, wasMuted := c.muted[userID]
	if wasMuted {
		delete(c.muted, userID)
	} else {
		c.muted[userID] = struct{}{}
	}
	c.mu.Unlock()

	verb := "muted"
	if wasMuted {
		verb = "unmuted"
	}
	c.SendMessage("", true, "mute_event",
		[]interface{}{fmt.Sprintf("%s(%s) was %s", user.Name, user.ID, verb)})
}

// IsMuted reports whether a user's messages are hidden locally
func (c *ChatService) IsMuted(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.muted[userID]
	return ok
}

// FilterChat sets the derived-view filter. An empty mode or value resets to
// the full log. Filtering never mutates the underlying log.
func (c *ChatService) FilterChat(mode, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == "" || value == "" {
		c.filterMode, c.filterValue = "", ""
		return
	}
	c.filterMode, c.filterValue = mode, value
}

// Messages returns a copy of the full chat log
func (c *ChatService) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

// FilteredMessages returns the derived view: the log minus muted senders,
// narrowed by the active filter
func (c *ChatService) FilteredMessages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	filtered := make([]models.ChatMessage, 0, len(c.messages))
	for _, msg := range c.messages {
		if _, muted := c.muted[msg.UserID]; muted {
			continue
		}
		switch c.filterMode {
		case FilterByUserID:
			if fmt.Sprintf("%s(%s)", msg.UserName, msg.UserID) != c.filterValue {
				continue
			}
		case FilterByEvents:
			if !msg.IsEvent {
				continue
			}
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

// SynchronizeWithServer replaces the local log with the relay's copy. The log
// is rebuilt message-by-message through the normal append path so names and
// colors come from the current registry state, not the snapshot.
func (c *ChatService) SynchronizeWithServer() {
	c.relay.SendRespondable(models.EventChatSynchronize, struct{}{}, RespondableOptions{
		ResponseEvent: models.EventChatSynchronize,
		OnResponse: func(raw json.RawMessage) {
			var sync models.ChatSynchronizeMessage
			if err := json.Unmarshal(raw, &sync); err != nil {
				zap.S().Warnw("malformed chat synchronize response", "error", err)
				return
			}
			c.mu.Lock()
			c.messages = nil
			c.seen = make(map[int]struct{})
			c.mu.Unlock()
			for _, msg := range sync.Messages {
				c.AddChatMessage(msg)
			}
		},
		OnOffline: func() {
			c.notifier.ShowError("chat synchronization failed: relay unreachable")
		},
	})
}
