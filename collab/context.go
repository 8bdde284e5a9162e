package collab

import (
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/landviz/collab-api/models"
)

// Options configures one client session
type Options struct {
	RelayURL  string
	SessionID string
	// Ticket is the signed join token obtained from the REST API
	Ticket   string
	DeviceID string
	Mode     models.VisualizationMode
	Camera   CameraRig
	Model    LandscapeModel
	Notifier Notifier
}

// SessionContext owns one client's collaboration state: the relay connection,
// the membership registry and every service built on top of them. Constructing
// a second context gives a fully isolated session.
type SessionContext struct {
	opts Options

	Relay      *RelayClient
	Session    *Session
	Spectate   *SpectateCoordinator
	Chat       *ChatService
	Pose       *PosePublisher
	Replicator *Replicator
}

// NewSessionContext builds the component graph and registers every protocol
// handler. The context starts offline; call Join to connect.
func NewSessionContext(opts Options) (*SessionContext, error) {
	if opts.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if opts.Camera == nil || opts.Model == nil || opts.Notifier == nil {
		return nil, fmt.Errorf("camera, model and notifier collaborators are required")
	}
	if opts.Mode == "" {
		opts.Mode = models.ModeBrowser
	}

	ctx := &SessionContext{opts: opts}
	ctx.Relay = NewRelayClient()
	ctx.Session = NewSession()
	ctx.Spectate = NewSpectateCoordinator(ctx.Relay, ctx.Session, opts.Camera, opts.Notifier, opts.DeviceID)
	ctx.Chat = NewChatService(ctx.Relay, ctx.Session, opts.Notifier)
	ctx.Pose = NewPosePublisher(ctx.Relay, opts.Camera, ctx.Spectate)
	ctx.Replicator = NewReplicator(ctx.Relay, opts.Model, opts.Notifier)

	ctx.registerHandlers()
	ctx.Relay.OnDisconnect(ctx.handleOffline)
	return ctx, nil
}

// Join dials the relay and starts the handshake. The session turns online when
// the self_connected response arrives.
func (ctx *SessionContext) Join() error {
	if !ctx.Session.SetConnecting() {
		return fmt.Errorf("session is not offline")
	}
	joinURL, err := ctx.joinURL()
	if err != nil {
		ctx.Session.SetOffline()
		return err
	}
	if err := ctx.Relay.Connect(joinURL); err != nil {
		ctx.Session.SetOffline()
		return fmt.Errorf("failed to reach relay: %w", err)
	}
	return nil
}

// Leave closes the relay connection; the offline cascade runs through the
// disconnect callback
func (ctx *SessionContext) Leave() {
	ctx.Relay.Disconnect()
}

// Tick drives the per-frame work: follow the spectated user, then publish the
// local pose
func (ctx *SessionContext) Tick() {
	ctx.Spectate.Tick()
	ctx.Pose.Tick()
}

func (ctx *SessionContext) joinURL() (string, error) {
	u, err := url.Parse(ctx.opts.RelayURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("ticket", ctx.opts.Ticket)
	q.Set("sessionId", ctx.opts.SessionID)
	if ctx.opts.DeviceID != "" {
		q.Set("deviceId", ctx.opts.DeviceID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// registerHandlers installs the dispatch table: one typed decoder per protocol
// event, each forwarding into the owning service
func (ctx *SessionContext) registerHandlers() {
	ctx.Relay.On(models.EventSelfConnected, func(_ string, raw json.RawMessage) {
		var msg models.SelfConnectedMessage
		if !decode(models.EventSelfConnected, raw, &msg) {
			return
		}
		ctx.handleSelfConnected(msg)
	})

	ctx.Relay.On(models.EventUserConnected, func(_ string, raw json.RawMessage) {
		var msg models.UserConnectedMessage
		if !decode(models.EventUserConnected, raw, &msg) {
			return
		}
		ctx.Session.AddUser(msg.User)
		ctx.opts.Notifier.ShowInfo(msg.User.Name + " joined the session")
	})

	ctx.Relay.On(models.EventUserDisconnected, func(_ string, raw json.RawMessage) {
		var msg models.UserDisconnectedMessage
		if !decode(models.EventUserDisconnected, raw, &msg) {
			return
		}
		if user := ctx.Session.LookupByID(msg.ID); user != nil {
			ctx.opts.Notifier.ShowInfo(user.Name + " left the session")
		}
		ctx.Spectate.HandleUserDisconnected(msg.ID)
		ctx.Session.RemoveUser(msg.ID)
	})

	ctx.Relay.On(models.EventPoseUpdate, func(senderID string, raw json.RawMessage) {
		var msg models.PoseUpdateMessage
		if !decode(models.EventPoseUpdate, raw, &msg) {
			return
		}
		if user := ctx.Session.LookupByID(senderID); user != nil {
			user.Camera = msg.Camera
			user.Controller1 = msg.Controller1
			user.Controller2 = msg.Controller2
		}
	})

	ctx.Relay.On(models.EventMousePingUpdate, func(_ string, raw json.RawMessage) {
		var msg models.MousePingUpdateMessage
		if !decode(models.EventMousePingUpdate, raw, &msg) {
			return
		}
		ctx.opts.Model.ApplyMousePing(msg.ModelID, msg.Position, msg.IsRestartable)
	})

	ctx.Relay.On(models.EventSpectatingUpdate, func(senderID string, raw json.RawMessage) {
		var msg models.SpectatingUpdateMessage
		if !decode(models.EventSpectatingUpdate, raw, &msg) {
			return
		}
		ctx.Spectate.HandleSpectatingUpdate(senderID, msg)
	})

	ctx.Relay.On(models.EventChatMessage, func(_ string, raw json.RawMessage) {
		var msg models.ChatMessage
		if !decode(models.EventChatMessage, raw, &msg) {
			return
		}
		ctx.Chat.AddChatMessage(msg)
	})

	ctx.Relay.On(models.EventMessageDelete, func(senderID string, raw json.RawMessage) {
		var msg models.MessageDeleteMessage
		if !decode(models.EventMessageDelete, raw, &msg) {
			return
		}
		ctx.Chat.RemoveMessages(msg.MsgIDs, RemoteOrigin(senderID))
	})

	ctx.Relay.On(models.EventComponentUpdate, func(_ string, raw json.RawMessage) {
		var msg models.ComponentUpdateMessage
		if !decode(models.EventComponentUpdate, raw, &msg) {
			return
		}
		ctx.opts.Model.ApplyComponentUpdate(msg.AppID, msg.ComponentID, msg.IsFoundation, msg.IsOpened)
	})

	ctx.Relay.On(models.EventHighlightingUpdate, func(_ string, raw json.RawMessage) {
		var msg models.HighlightingUpdateMessage
		if !decode(models.EventHighlightingUpdate, raw, &msg) {
			return
		}
		ctx.opts.Model.ApplyHighlighting(msg.AppID, msg.EntityType, msg.EntityID, msg.IsHighlighted)
	})

	ctx.Relay.On(models.EventRestructureModeUpdate, func(senderID string, _ json.RawMessage) {
		ctx.Replicator.ToggleRestructureMode(RemoteOrigin(senderID))
	})

	ctx.Relay.On(models.EventRestructureUpdate, func(senderID string, raw json.RawMessage) {
		var msg models.RestructureUpdateMessage
		if !decode(models.EventRestructureUpdate, raw, &msg) {
			return
		}
		ctx.Replicator.RenameEntity(msg.EntityType, msg.EntityID, msg.NewName, msg.AppID, RemoteOrigin(senderID))
	})

	ctx.Relay.On(models.EventRestructureCreateOrDelete, func(senderID string, raw json.RawMessage) {
		var msg models.RestructureCreateOrDeleteMessage
		if !decode(models.EventRestructureCreateOrDelete, raw, &msg) {
			return
		}
		origin := RemoteOrigin(senderID)
		switch {
		case msg.Action == models.ActionDelete:
			ctx.Replicator.DeleteEntity(msg.EntityType, msg.EntityID, origin)
		case msg.EntityType == models.EntityApp:
			ctx.Replicator.CreateApplication(msg.Name, msg.Language, origin)
		default:
			ctx.Replicator.CreateChildEntity(msg.EntityType, msg.EntityID, msg.Name, origin)
		}
	})

	ctx.Relay.On(models.EventRestructureCutAndInsert, func(senderID string, raw json.RawMessage) {
		var msg models.RestructureCutAndInsertMessage
		if !decode(models.EventRestructureCutAndInsert, raw, &msg) {
			return
		}
		ctx.Replicator.CutAndInsert(msg.ClippedEntity, msg.ClippedEntityID,
			msg.DestinationEntity, msg.DestinationID, RemoteOrigin(senderID))
	})

	ctx.Relay.On(models.EventRestructureCommunication, func(senderID string, raw json.RawMessage) {
		var msg models.RestructureCommunicationMessage
		if !decode(models.EventRestructureCommunication, raw, &msg) {
			return
		}
		ctx.Replicator.AddCommunication(msg.SourceClassID, msg.TargetClassID, msg.MethodName, RemoteOrigin(senderID))
	})
}

// handleSelfConnected applies the join handshake. A refreshed handshake while
// already online is the host-migration path: the relay re-sends the snapshot
// with the host flag flipped.
func (ctx *SessionContext) handleSelfConnected(msg models.SelfConnectedMessage) {
	if ctx.Session.Status() == StatusOnline {
		if msg.Self.IsHost && !ctx.Session.LocalUser().IsHost {
			ctx.Session.PromoteToHost()
			ctx.opts.Notifier.ShowInfo("you are now the session host")
		}
		return
	}
	ctx.Session.SetOnline(msg.Self, ctx.opts.Mode, msg.Users)
	if msg.Self.IsHost {
		ctx.opts.Notifier.ShowInfo("session hosted as " + msg.Self.Name)
	} else {
		ctx.opts.Notifier.ShowInfo("joined session as " + msg.Self.Name)
	}
}

// handleOffline cascades a lost connection through every component. The chat
// log and mute set survive so the user keeps their history after a drop.
func (ctx *SessionContext) handleOffline() {
	if ctx.Session.Status() == StatusOffline {
		return
	}
	zap.S().Infow("relay connection lost, session offline")
	ctx.Session.SetOffline()
	ctx.Spectate.Reset()
	ctx.Pose.Reset()
	ctx.opts.Notifier.ShowError("connection to the collaboration session was lost")
}

func decode(event string, raw json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		zap.S().Warnw("malformed message payload", "event", event, "error", err)
		return false
	}
	return true
}
