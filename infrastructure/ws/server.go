package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"support-chat/auth"
	"support-chat/contract"
	"support-chat/domain"
	"support-chat/domain/event"
	"support-chat/errors"
	"support-chat/observability"
	"support-chat/repositories"
	"support-chat/runtime"
	"support-chat/search"
	"support-chat/services"
)

// Config holds the transport knobs the server needs from the environment.
type Config struct {
	ConnectionBufferSize int
	WriteTimeout         time.Duration
	PingInterval         time.Duration
	ReplayDefaultLimit   int
	ReplayMaxLimit       int
}

// Deps wires the server to the engine.
type Deps struct {
	Log           *slog.Logger
	Tokens        *auth.TokenManager
	Registry      contract.IRegistry
	Publisher     contract.IPublisher
	Messages      services.IMessageService
	Conversations *services.ConversationService
	Repository    repositories.IConversationRepository
	Unread        repositories.IUnreadStore
	EventLog      repositories.IEventLog
	Index         search.IMessageIndex
	Stats         *observability.Stats
}

// Server terminates websocket connections and exposes the read-side HTTP
// surface (replay, history, search, unread).
type Server struct {
	cfg      Config
	deps     Deps
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		deps:     deps,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients are embedded on arbitrary merchant sites.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", s.handleWS)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/replay", s.handleReplay)
		r.Get("/search", s.handleSearch)
		r.Get("/unread", s.handleUnread)
		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Get("/messages", s.handleHistory)
			r.Post("/close", s.handleClose)
			r.Post("/reopen", s.handleReopen)
		})
		r.Patch("/messages/{messageID}", s.handleUpdateMessage)
		r.Delete("/messages/{messageID}", s.handleDeleteMessage)
	})
	return r
}

// session is the per-connection state machine:
// Unauthenticated -> Authenticated on a valid auth frame, -> Closed on
// transport close or error. Non-auth frames before auth are logged and
// dropped; the connection stays open.
type session struct {
	conn           *Conn
	claims         *auth.ConnectionClaims
	conversationID string
}

func (sess *session) authenticated() bool { return sess.claims != nil }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(sock, s.deps.Log, s.deps.Stats,
		s.cfg.ConnectionBufferSize, s.cfg.WriteTimeout, s.cfg.PingInterval)
	s.deps.Stats.ConnectionsOpened.Add(1)
	go conn.writePump()

	s.readLoop(r, &session{conn: conn})
}

// readLoop owns the inbound side of one connection until the transport
// dies. On exit the connection is unregistered from whichever keyspace it
// occupied; unregistering an unauthenticated connection is a no-op.
func (s *Server) readLoop(r *http.Request, sess *session) {
	conn := sess.conn
	defer func() {
		s.deps.Registry.Unregister(conn.ID())
		conn.Close()
		s.deps.Stats.ConnectionsClosed.Add(1)
	}()

	for {
		_, data, err := conn.sock.ReadMessage()
		if err != nil {
			s.deps.Log.Debug("Connection closed", "connection_id", conn.ID(), "error", err)
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.deps.Stats.FramesDropped.Add(1)
			s.deps.Log.Warn("Malformed frame dropped", "connection_id", conn.ID(), "error", err)
			continue
		}
		if err := s.validate.Struct(frame); err != nil {
			s.deps.Stats.FramesDropped.Add(1)
			s.deps.Log.Warn("Invalid frame dropped", "connection_id", conn.ID(), "error", err)
			continue
		}

		switch frame.Type {
		case "auth":
			s.handleAuth(r, sess, frame)
		default:
			if !sess.authenticated() {
				s.deps.Stats.FramesDropped.Add(1)
				s.deps.Log.Warn("Frame before auth dropped",
					"connection_id", conn.ID(), "frame_type", frame.Type)
				continue
			}
			switch frame.Type {
			case "ping":
				s.deliver(conn, PongFrame{Type: "pong"})
			case "join":
				s.handleJoin(sess, frame)
			case "send":
				s.handleSend(r, sess, frame)
			case "typing":
				s.handleTyping(sess, frame)
			case "read":
				s.handleRead(r, sess, frame)
			}
		}
	}
}

func (s *Server) handleAuth(r *http.Request, sess *session, frame InboundFrame) {
	if sess.authenticated() {
		s.deps.Log.Debug("Duplicate auth ignored", "connection_id", sess.conn.ID())
		return
	}
	claims, err := s.deps.Tokens.Validate(frame.Token)
	if err != nil {
		s.deps.Stats.FramesDropped.Add(1)
		s.deps.Log.Warn("Auth rejected", "connection_id", sess.conn.ID(), "error", err)
		return
	}

	switch claims.Role {
	case auth.RoleStaff:
		s.deps.Registry.RegisterStaff(sess.conn.ID(), claims.UserID, claims.ShopID, sess.conn)
		sess.claims = claims
		s.deliver(sess.conn, AckFrame{Type: "ack", Op: "auth"})

	case auth.RoleCustomer:
		// Last-connect-wins: evict a previous tab/session of this customer.
		if replaced := s.deps.Registry.RegisterCustomer(
			sess.conn.ID(), claims.ShopID, claims.CustomerCode, sess.conn); replaced != nil {
			replaced.Close()
		}
		sess.claims = claims

		conv, events, err := s.deps.Conversations.Ensure(r.Context(), claims.ShopID, claims.CustomerCode)
		if err != nil {
			s.deps.Log.Error("Conversation bootstrap failed",
				"shop_id", claims.ShopID, "error", err)
			s.deliver(sess.conn, ErrorFrame{Type: "error", Op: "auth", Reason: "conversation unavailable"})
			return
		}
		sess.conversationID = conv.ID
		s.deps.Publisher.Publish(r.Context(), events)
		s.deliver(sess.conn, AckFrame{Type: "ack", Op: "auth", ConversationID: conv.ID})

	default:
		s.deps.Stats.FramesDropped.Add(1)
		s.deps.Log.Warn("Auth with unknown role dropped", "role", claims.Role)
	}
}

func (s *Server) handleJoin(sess *session, frame InboundFrame) {
	if frame.ConversationID != "" {
		sess.conversationID = frame.ConversationID
	}
	s.deliver(sess.conn, AckFrame{Type: "ack", Op: "join", ConversationID: sess.conversationID})
}

func (s *Server) handleSend(r *http.Request, sess *session, frame InboundFrame) {
	conversationID := frame.ConversationID
	if conversationID == "" {
		conversationID = sess.conversationID
	}

	cmd := services.SendMessageCommand{
		ConversationID: conversationID,
		Content:        frame.Content,
		MessageType:    frame.MessageType,
	}
	switch sess.claims.Role {
	case auth.RoleStaff:
		cmd.SenderID = sess.claims.UserID
		cmd.SenderType = string(domain.SenderAgent)
	case auth.RoleCustomer:
		cmd.SenderID = sess.claims.CustomerCode
		cmd.SenderType = string(domain.SenderCustomer)
	}

	result, err := s.deps.Messages.Send(r.Context(), cmd)
	if err != nil {
		s.deps.Log.Warn("Send refused", "conversation_id", conversationID, "error", err)
		s.deliver(sess.conn, ErrorFrame{Type: "error", Op: "send", Reason: err.Error()})
		return
	}

	s.deps.Publisher.Publish(r.Context(), result.Events)
	s.deliver(sess.conn, AckFrame{
		Type: "ack", Op: "send",
		MessageID: result.MessageID, ConversationID: conversationID,
	})
}

// handleTyping routes the indicator like a message envelope but bypasses
// the publisher entirely: no event_id, no event log row.
func (s *Server) handleTyping(sess *session, frame InboundFrame) {
	conversationID := frame.ConversationID
	if conversationID == "" {
		conversationID = sess.conversationID
	}

	var shopID, customerCode, userID, userType string
	switch sess.claims.Role {
	case auth.RoleCustomer:
		shopID, customerCode = sess.claims.ShopID, sess.claims.CustomerCode
		userID, userType = sess.claims.CustomerCode, string(domain.SenderCustomer)
	case auth.RoleStaff:
		conv, err := s.deps.Repository.Find(conversationID)
		if err != nil {
			s.deps.Log.Debug("Typing for unknown conversation dropped",
				"conversation_id", conversationID, "error", err)
			return
		}
		shopID, customerCode = conv.ShopID, conv.CustomerID
		userID, userType = sess.claims.UserID, string(domain.SenderAgent)
	}

	payload, err := json.Marshal(TypingFrame{
		Type:           "typing",
		ConversationID: conversationID,
		UserID:         userID,
		UserType:       userType,
		IsTyping:       frame.IsTyping,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return
	}
	s.deps.Registry.SendToCustomer(shopID, customerCode, payload)
	s.deps.Registry.BroadcastToStaff(shopID, payload)
}

func (s *Server) handleRead(r *http.Request, sess *session, frame InboundFrame) {
	if sess.claims.Role != auth.RoleStaff {
		s.deps.Stats.FramesDropped.Add(1)
		s.deps.Log.Debug("Read frame from non-staff dropped", "connection_id", sess.conn.ID())
		return
	}
	if err := s.deps.Messages.MarkRead(r.Context(), frame.ConversationID); err != nil {
		s.deliver(sess.conn, ErrorFrame{Type: "error", Op: "read", Reason: err.Error()})
		return
	}
	s.deliver(sess.conn, AckFrame{Type: "ack", Op: "read", ConversationID: frame.ConversationID})
}

func (s *Server) deliver(conn *Conn, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.deps.Log.Error("Frame encoding failed", "error", err)
		return
	}
	if err := conn.Deliver(payload); err != nil {
		s.deps.Log.Debug("Direct delivery failed", "connection_id", conn.ID(), "error", err)
	}
}

// --- HTTP read side ---

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var since *string
	if raw := r.URL.Query().Get("since_event_id"); raw != "" {
		since = &raw
	}
	limit := s.queryInt(r, "limit", s.cfg.ReplayDefaultLimit)
	if limit > s.cfg.ReplayMaxLimit {
		limit = s.cfg.ReplayMaxLimit
	}

	envelopes, err := s.deps.EventLog.ReplaySince(since, limit)
	if err != nil {
		if errors.Is(err, errors.ErrCursorNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown since_event_id")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "replay failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": envelopes})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	limit := s.queryInt(r, "limit", 50)
	offset := s.queryInt(r, "offset", 0)

	messages, err := s.deps.Messages.List(r.Context(), conversationID, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"messages": lo.Map(messages, func(m domain.Message, _ int) map[string]any {
			return runtime.MessageSnapshot(m)
		}),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query().Get("q")
	if terms == "" {
		s.writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	hits, err := s.deps.Index.Search(r.Context(), terms,
		r.URL.Query().Get("conversation_id"), s.queryInt(r, "limit", 10))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop_id")
	customerID := r.URL.Query().Get("customer_id")
	if shopID == "" || customerID == "" {
		s.writeError(w, http.StatusBadRequest, "missing shop_id or customer_id")
		return
	}
	count, err := s.deps.Unread.Get(shopID, customerID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "unread count unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	events, err := s.deps.Messages.Update(r.Context(), messageID, body.Content)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "message not found")
		case errors.IsDomain(err):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, "update failed")
		}
		return
	}
	s.deps.Publisher.Publish(r.Context(), events)
	s.writeJSON(w, http.StatusOK, map[string]any{"message_id": messageID})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	hard := r.URL.Query().Get("hard") == "true"

	events, err := s.deps.Messages.Delete(r.Context(), messageID, hard)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "message not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	s.deps.Publisher.Publish(r.Context(), events)
	s.writeJSON(w, http.StatusOK, map[string]any{"message_id": messageID})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.deps.Conversations.Close)
}

func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.deps.Conversations.Reopen)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request,
	transition func(ctx context.Context, conversationID string) ([]event.DomainEvent, error)) {
	conversationID := chi.URLParam(r, "conversationID")
	events, err := transition(r.Context(), conversationID)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "conversation not found")
		case errors.IsDomain(err):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, "operation failed")
		}
		return
	}
	s.deps.Publisher.Publish(r.Context(), events)
	s.writeJSON(w, http.StatusOK, map[string]any{"conversation_id": conversationID})
}

func (s *Server) queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Log.Warn("Response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, reason string) {
	s.writeJSON(w, status, map[string]string{"error": reason})
}
