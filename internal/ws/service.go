// SPDX-License-Identifier: MIT

package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/store"
)

const opTimeout = 5 * time.Second

// Service owns the socket endpoints: authentication, membership checks,
// history replay and inbound event handling.
type Service struct {
	hub      *Hub
	tokens   *auth.Tokens
	rooms    *store.Rooms
	messages *store.Messages
	history  int
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewService wires the socket endpoints. allowedOrigins of ["*"] accepts
// any origin.
func NewService(hub *Hub, tokens *auth.Tokens, rooms *store.Rooms, messages *store.Messages, historyLimit int, allowedOrigins []string, logger zerolog.Logger) *Service {
	s := &Service{
		hub:      hub,
		tokens:   tokens,
		rooms:    rooms,
		messages: messages,
		history:  historyLimit,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleChat upgrades GET /ws/chat/{roomID}. The socket is accepted first
// and then closed with a protocol code when the caller is unauthenticated
// (4001), not a member (4002) or the room does not exist (4004), so
// browser clients can tell the cases apart.
func (s *Service) HandleChat(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		metrics.IncWSConnection("no_room")
		s.closeWith(w, r, CloseNoRoom, "unknown room")
		return
	}

	claims, ok := s.authenticate(r)
	if !ok {
		metrics.IncWSConnection("unauthorized")
		s.closeWith(w, r, CloseUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncWSConnection("no_room")
			s.closeWith(w, r, CloseNoRoom, "unknown room")
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if _, err := s.rooms.Role(ctx, roomID, claims.UserID); err != nil {
		if errors.Is(err, domain.ErrNotMember) {
			metrics.IncWSConnection("not_member")
			s.closeWith(w, r, CloseNotMember, "not a member")
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	metrics.IncWSConnection("accepted")

	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		userID: claims.UserID,
		name:   claims.Username,
		roomID: roomID,
		logger: s.logger,
	}
	s.hub.register(client)

	go client.writePump()

	s.onConnect(client)
	client.readPump(s.handleInbound)
	s.onDisconnect(client)
}

// HandleNotifications upgrades GET /ws/notifications. The socket carries
// per-user events (direct room invites, status fanout) and accepts no
// inbound events.
func (s *Service) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(r)
	if !ok {
		metrics.IncWSConnection("unauthorized")
		s.closeWith(w, r, CloseUnauthorized, "authentication required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	metrics.IncWSConnection("accepted")

	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		userID: claims.UserID,
		name:   claims.Username,
		logger: s.logger,
	}
	s.hub.register(client)

	go client.writePump()
	client.readPump(func(c *Client, in Inbound) {
		c.Send(errorEvent("notification socket is read only"))
	})
}

func (s *Service) authenticate(r *http.Request) (auth.Claims, bool) {
	raw := auth.ExtractToken(r, true)
	if raw == "" {
		return auth.Claims{}, false
	}
	claims, err := s.tokens.Verify(raw, auth.TokenAccess)
	if err != nil {
		return auth.Claims{}, false
	}
	return claims, true
}

// closeWith completes the upgrade and immediately closes with a protocol
// code. Rejecting before the upgrade would surface as a generic HTTP
// error instead of the code.
func (s *Service) closeWith(w http.ResponseWriter, r *http.Request, code int, reason string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// onConnect announces presence, marks pending messages delivered and
// replays recent history to the new socket.
func (s *Service) onConnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
		Type:     EventUserStatus,
		UserID:   c.userID,
		Username: c.name,
		Presence: string(domain.PresenceOnline),
	})

	ids, err := s.messages.MarkRoomDelivered(ctx, c.roomID, c.userID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("room_id", c.roomID).Msg("delivery marking failed")
	}
	for _, id := range ids {
		metrics.IncMessageStatus(string(domain.StatusDelivered))
		_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
			Type:      EventMessageStatus,
			MessageID: id,
			Status:    domain.StatusDelivered,
		})
	}

	history, err := s.messages.ListByRoom(ctx, c.roomID, s.history, 0)
	if err != nil {
		s.logger.Warn().Err(err).Int64("room_id", c.roomID).Msg("history load failed")
		return
	}
	c.Send(Outbound{Type: EventHistory, RoomID: c.roomID, Messages: history}.encode())
}

func (s *Service) onDisconnect(c *Client) {
	if s.hub.connectedLocally(c.userID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
		Type:     EventUserStatus,
		UserID:   c.userID,
		Username: c.name,
		Presence: string(domain.PresenceOffline),
	})
}

func (s *Service) handleInbound(c *Client, in Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch in.Type {
	case EventChatMessage:
		s.handleChatMessage(ctx, c, in)
	case EventTyping:
		_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
			Type:     EventTyping,
			UserID:   c.userID,
			Username: c.name,
			Typing:   in.Typing,
		})
	case EventMessageStatus:
		s.handleStatusUpdate(ctx, c, in)
	case EventMessageRead:
		s.handleRead(ctx, c, in)
	case EventReaction:
		s.handleReaction(ctx, c, in)
	default:
		c.Send(errorEvent("unknown event type"))
	}
}

func (s *Service) handleChatMessage(ctx context.Context, c *Client, in Inbound) {
	if in.Content == "" {
		c.Send(errorEvent("empty message"))
		return
	}
	msg, err := s.messages.Create(ctx, c.roomID, c.userID, in.Content, domain.StatusSent, "", "")
	if err != nil {
		s.logger.Error().Err(err).Int64("room_id", c.roomID).Msg("message persist failed")
		c.Send(errorEvent("message not saved"))
		return
	}
	metrics.IncMessageSent()
	metrics.IncMessageStatus(string(domain.StatusSent))
	_ = s.hub.Broadcast(ctx, c.roomID, Outbound{Type: EventChatMessage, Message: &msg})
	s.NotifyNewMessage(ctx, msg)
}

// NotifyNewMessage publishes a new-message notification on the per-user
// channel of every room member except the sender. Members without an open
// room socket still hear about the message through /ws/notifications.
func (s *Service) NotifyNewMessage(ctx context.Context, msg domain.Message) {
	members, err := s.rooms.Members(ctx, msg.RoomID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("room_id", msg.RoomID).Msg("notification fanout failed")
		return
	}
	out := Outbound{Type: EventNotification, RoomID: msg.RoomID, Message: &msg}
	for _, m := range members {
		if m.UserID == msg.SenderID {
			continue
		}
		if err := s.hub.Notify(ctx, m.UserID, out); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", m.UserID).Msg("notification publish failed")
		}
	}
}

func (s *Service) handleStatusUpdate(ctx context.Context, c *Client, in Inbound) {
	status := domain.MessageStatus(in.Status)
	if !status.Valid() {
		c.Send(errorEvent("invalid status"))
		return
	}
	advanced, err := s.messages.AdvanceStatus(ctx, in.MessageID, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.Send(errorEvent("unknown message"))
			return
		}
		s.logger.Error().Err(err).Int64("message_id", in.MessageID).Msg("status update failed")
		return
	}
	if !advanced {
		return
	}
	metrics.IncMessageStatus(string(status))
	_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
		Type:      EventMessageStatus,
		MessageID: in.MessageID,
		Status:    status,
	})
}

func (s *Service) handleRead(ctx context.Context, c *Client, in Inbound) {
	if err := s.messages.MarkRead(ctx, in.MessageID, c.userID); err != nil {
		s.logger.Error().Err(err).Int64("message_id", in.MessageID).Msg("read marking failed")
		return
	}
	metrics.IncMessageStatus(string(domain.StatusSeen))
	_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
		Type:      EventMessageStatus,
		MessageID: in.MessageID,
		Status:    domain.StatusSeen,
		UserID:    c.userID,
	})
}

// handleReaction toggles: a second identical reaction removes the first.
func (s *Service) handleReaction(ctx context.Context, c *Client, in Inbound) {
	if in.Emoji == "" {
		c.Send(errorEvent("empty emoji"))
		return
	}
	reaction, err := s.messages.AddReaction(ctx, in.MessageID, c.userID, in.Emoji)
	if err == nil {
		_ = s.hub.Broadcast(ctx, c.roomID, Outbound{Type: EventReaction, Reaction: &reaction})
		return
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		if err := s.messages.RemoveReaction(ctx, in.MessageID, c.userID, in.Emoji); err != nil {
			s.logger.Error().Err(err).Int64("message_id", in.MessageID).Msg("reaction removal failed")
			return
		}
		_ = s.hub.Broadcast(ctx, c.roomID, Outbound{
			Type: EventReaction,
			Reaction: &domain.Reaction{
				MessageID: in.MessageID,
				UserID:    c.userID,
				Username:  c.name,
				Emoji:     in.Emoji,
			},
			Removed: true,
		})
		return
	}
	s.logger.Error().Err(err).Int64("message_id", in.MessageID).Msg("reaction failed")
}
