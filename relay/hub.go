package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/api"
	"github.com/landviz/collab-api/models"
)

// colorPalette is cycled through as users join a session
var colorPalette = []models.Color{
	{Red: 255, Green: 0, Blue: 0},
	{Red: 0, Green: 167, Blue: 250},
	{Red: 209, Green: 0, Blue: 209},
	{Red: 0, Green: 209, Blue: 188},
	{Red: 219, Green: 112, Blue: 147},
	{Red: 173, Green: 255, Blue: 47},
	{Red: 255, Green: 165, Blue: 0},
	{Red: 30, Green: 144, Blue: 255},
}

type inboundFrame struct {
	client *Client
	env    models.Envelope
}

// session is one relay room. All fields are owned by the hub run loop; the
// relay never persists any of this, a restart empties every room.
type session struct {
	id           string
	members      map[string]*Client
	order        []string
	hostID       string
	chatLog      []models.ChatMessage
	nextMsgID    int
	colorIndex   int
	lastActivity time.Time
}

// Hub owns every session room and serializes all membership and chat state
// through a single run loop
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	ops        chan func()
	sessions   map[string]*session
	metrics    *api.RelayMetrics
}

// NewHub creates an empty hub; call Run in a goroutine before serving
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 64),
		ops:        make(chan func()),
		sessions:   make(map[string]*session),
		metrics:    api.GetMetrics().Relay(),
	}
}

// Run processes registration, disconnects and inbound frames in arrival order
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.handleJoin(c)
		case c := <-h.unregister:
			h.handleLeave(c)
		case f := <-h.inbound:
			h.handleFrame(f.client, f.env)
		case op := <-h.ops:
			op()
		}
	}
}

func (h *Hub) handleJoin(c *Client) {
	s, ok := h.sessions[c.sessionID]
	if !ok {
		s = &session{
			id:        c.sessionID,
			members:   make(map[string]*Client),
			nextMsgID: 1,
		}
		h.sessions[c.sessionID] = s
		h.metrics.SessionsOpened.Add(1)
	}
	h.metrics.ClientsConnected.Add(1)
	s.lastActivity = time.Now()

	c.userID = uuid.New().String()
	c.color = colorPalette[s.colorIndex%len(colorPalette)]
	s.colorIndex++
	c.joinedAt = time.Now()

	if len(s.members) == 0 {
		s.hostID = c.userID
	}
	s.members[c.userID] = c
	s.order = append(s.order, c.userID)

	zap.S().Infow("user joined session",
		"sessionId", s.id,
		"userId", c.userID,
		"userName", c.userName,
		"isHost", s.hostID == c.userID,
	)

	// handshake: the joiner learns its identity and the current membership
	snapshot := make([]models.UserSnapshot, 0, len(s.members)-1)
	for id, m := range s.members {
		if id == c.userID {
			continue
		}
		snapshot = append(snapshot, m.snapshot(s.hostID))
	}
	c.enqueue(marshalFrame(models.EventSelfConnected, "", nil, models.SelfConnectedMessage{
		Self:  c.snapshot(s.hostID),
		Users: snapshot,
	}))

	h.broadcast(s, c.userID, marshalFrame(models.EventUserConnected, c.userID, nil, models.UserConnectedMessage{
		User: c.snapshot(s.hostID),
	}))
}

func (h *Hub) handleLeave(c *Client) {
	s, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if _, ok := s.members[c.userID]; !ok {
		return
	}
	delete(s.members, c.userID)
	for i, id := range s.order {
		if id == c.userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	close(c.send)
	s.lastActivity = time.Now()
	h.metrics.ClientsConnected.Add(-1)

	zap.S().Infow("user left session", "sessionId", s.id, "userId", c.userID)

	if len(s.members) == 0 {
		delete(h.sessions, s.id)
		h.metrics.SessionsClosed.Add(1)
		return
	}

	h.broadcast(s, c.userID, marshalFrame(models.EventUserDisconnected, c.userID, nil, models.UserDisconnectedMessage{
		ID: c.userID,
	}))

	// host migration: the oldest remaining member inherits host authority and
	// is told via a refreshed handshake
	if s.hostID == c.userID {
		s.hostID = s.order[0]
		promoted := s.members[s.hostID]
		snapshot := make([]models.UserSnapshot, 0, len(s.members)-1)
		for id, m := range s.members {
			if id == promoted.userID {
				continue
			}
			snapshot = append(snapshot, m.snapshot(s.hostID))
		}
		promoted.enqueue(marshalFrame(models.EventSelfConnected, "", nil, models.SelfConnectedMessage{
			Self:  promoted.snapshot(s.hostID),
			Users: snapshot,
		}))
		zap.S().Infow("host migrated", "sessionId", s.id, "userId", s.hostID)
	}
}

// handleFrame routes one inbound frame. Chat events are answered by the relay
// itself so there is exactly one msgId sequence per session; everything else is
// forwarded verbatim with the sender id stamped on.
func (h *Hub) handleFrame(c *Client, env models.Envelope) {
	s, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	s.lastActivity = time.Now()

	switch env.Event {
	case models.EventChatMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			zap.S().Warnw("malformed chat message", "userId", c.userID, "error", err)
			return
		}
		msg.MsgID = s.nextMsgID
		s.nextMsgID++
		msg.UserID = c.userID
		msg.UserName = c.userName
		if msg.Timestamp == 0 {
			msg.Timestamp = time.Now().UnixMilli()
		}
		s.chatLog = append(s.chatLog, msg)
		h.metrics.ChatMessages.Add(1)
		// echoed to everyone including the sender, which is how the sender
		// learns the authoritative msgId
		frame := marshalFrame(models.EventChatMessage, c.userID, nil, msg)
		for _, m := range s.members {
			m.enqueue(frame)
		}
	case models.EventChatSynchronize:
		c.enqueue(marshalFrame(models.EventChatSynchronize, c.userID, env.Nonce, models.ChatSynchronizeMessage{
			Messages: s.chatLog,
		}))
	case models.EventMessageDelete:
		var del models.MessageDeleteMessage
		if err := json.Unmarshal(env.Message, &del); err != nil {
			return
		}
		s.chatLog = removeMessages(s.chatLog, del.MsgIDs)
		h.broadcast(s, c.userID, marshalFrame(models.EventMessageDelete, c.userID, nil, del))
	case "":
		// frames without an event name are dropped
	default:
		env.UserID = c.userID
		frame, err := json.Marshal(env)
		if err != nil {
			return
		}
		h.broadcast(s, c.userID, frame)
	}
}

// broadcast sends a frame to every session member except the sender
func (h *Hub) broadcast(s *session, senderID string, frame []byte) {
	if frame == nil {
		return
	}
	for id, m := range s.members {
		if id == senderID {
			continue
		}
		m.enqueue(frame)
		h.metrics.FramesForwarded.Add(1)
	}
}

// PruneIdleSessions drops sessions with no members or no activity for maxIdle.
// Runs on the hub loop so it is safe against concurrent joins.
func (h *Hub) PruneIdleSessions(maxIdle time.Duration) {
	done := make(chan struct{})
	h.ops <- func() {
		defer close(done)
		cutoff := time.Now().Add(-maxIdle)
		for id, s := range h.sessions {
			if len(s.members) == 0 || s.lastActivity.Before(cutoff) {
				for _, m := range s.members {
					close(m.send)
					h.metrics.ClientsConnected.Add(-1)
				}
				delete(h.sessions, id)
				h.metrics.SessionsClosed.Add(1)
				zap.S().Infow("pruned idle session", "sessionId", id)
			}
		}
	}
	<-done
}

// SessionCount reports the number of live sessions
func (h *Hub) SessionCount() int {
	count := make(chan int)
	h.ops <- func() { count <- len(h.sessions) }
	return <-count
}

func (c *Client) snapshot(hostID string) models.UserSnapshot {
	return models.UserSnapshot{
		ID:     c.userID,
		Name:   c.userName,
		Color:  c.color,
		IsHost: c.userID == hostID,
		State:  models.StateOnline,
	}
}

func marshalFrame(event, userID string, nonce *uint64, message interface{}) []byte {
	raw, err := json.Marshal(message)
	if err != nil {
		zap.S().Errorw("failed to marshal frame", "event", event, "error", err)
		return nil
	}
	frame, err := json.Marshal(models.Envelope{
		Event:   event,
		UserID:  userID,
		Nonce:   nonce,
		Message: raw,
	})
	if err != nil {
		zap.S().Errorw("failed to marshal envelope", "event", event, "error", err)
		return nil
	}
	return frame
}

func removeMessages(log []models.ChatMessage, ids []int) []models.ChatMessage {
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := log[:0]
	for _, msg := range log {
		if !drop[msg.MsgID] {
			kept = append(kept, msg)
		}
	}
	return kept
}
