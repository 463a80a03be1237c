package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

// EventError is sent to a client whose frame was rejected
const EventError = "error"

// ErrorPayload is the payload of an error frame
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// session is one websocket client
type session struct {
	id     string
	user   *auth.UserInfo
	conn   transport.Conn
	server *Server
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(ctx context.Context, s *Server, conn transport.Conn, user *auth.UserInfo) *session {
	id := uuid.NewString()
	logger := s.logger.WithFields(
		logging.String("session_id", id),
		logging.String("remote_addr", conn.RemoteAddr()),
	)
	if user != nil {
		logger = logger.WithFields(logging.String("user", user.Username))
	}
	ctx, cancel := context.WithCancel(ctx)
	return &session{id: id, user: user, conn: conn, server: s, logger: logger, ctx: ctx, cancel: cancel}
}

// rateKey identifies the session for rate limiting. Sessions of the same
// user share a budget.
func (s *session) rateKey() string {
	if s.user != nil {
		return s.user.ID
	}
	return s.id
}

// run reads frames until the client goes away or the session is closed
func (s *session) run() {
	defer s.cancel()

	err := transport.Pump(s.ctx, s.conn, s.handle)
	if err != nil {
		s.logger.Info("session closed", logging.Int("close_code", transport.CloseCode(err)))
	} else {
		s.logger.Info("session closed by server")
	}
}

func (s *session) close() {
	s.cancel()
}

func (s *session) handle(data []byte) {
	m := s.server.metrics

	frame, err := protocol.Decode(data)
	if err != nil {
		m.parseErrors.Inc()
		s.logger.WithError(err).Warn("dropping malformed frame")
		s.sendError("invalid_frame", err.Error())
		return
	}
	kind := frameKind(frame.Event)
	m.framesReceived.WithLabelValues(kind).Inc()

	switch frame.Event {
	case protocol.EventPing:
		if s.server.pongDisabled.Load() {
			return
		}
		s.send(protocol.EventPong, frame.Payload, "")
		return
	case protocol.EventPong:
		return
	case protocol.EventAck:
		var p protocol.AckPayload
		if err := frame.DecodePayload(&p); err == nil {
			s.logger.Debug("client acknowledged", logging.MessageID(p.MessageID), logging.String("status", string(p.Status)))
		}
		return
	}

	if !s.server.limiter.Allow(s.rateKey()) {
		m.rateLimited.Inc()
		s.sendError("rate_limited", "too many frames")
		return
	}

	if frame.MessageID != "" && !s.server.config.DisableAutoAck {
		s.send(protocol.EventAck, protocol.AckPayload{
			MessageID: frame.MessageID,
			Status:    protocol.AckDelivered,
			Timestamp: protocol.Millis(time.Now()),
		}, uuid.NewString())
	}

	n := s.server.hub.broadcast(s, kind, data)
	s.logger.Debug("relayed frame", logging.Event(frame.Event), logging.Int("recipients", n))
}

func (s *session) send(event string, payload interface{}, messageID string) {
	frame, err := protocol.NewFrame(event, payload)
	if err != nil {
		s.logger.WithError(err).Error("failed to build frame", logging.Event(event))
		return
	}
	frame.MessageID = messageID
	frame.Timestamp = protocol.Millis(time.Now())

	data, err := protocol.Encode(frame)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode frame", logging.Event(event))
		return
	}
	if err := s.write(frameKind(event), data); err != nil {
		s.logger.WithError(err).Debug("write failed, closing session")
		s.close()
	}
}

func (s *session) write(kind string, data []byte) error {
	if err := s.conn.WriteMessage(data); err != nil {
		return err
	}
	s.server.metrics.framesSent.WithLabelValues(kind).Inc()
	return nil
}

func (s *session) sendError(code, message string) {
	s.send(EventError, ErrorPayload{Code: code, Message: message}, "")
}

func frameKind(event string) string {
	switch event {
	case protocol.EventPing, protocol.EventPong:
		return event
	case protocol.EventAck:
		return "ack"
	case EventError:
		return "error"
	default:
		return "app"
	}
}
