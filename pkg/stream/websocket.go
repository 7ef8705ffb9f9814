package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const websocketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func closeWithReason(conn *websocket.Conn, code int, reason string) {
	// control frame payloads are limited to 125 bytes
	if len(reason) > 123 {
		reason = reason[:123]
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(websocketWriteTimeout))
}

// ServeWebsocket is the websocket variant of ServeStream. The client sends
// the JSON input as its first text frame; every delta, the sentinel and the
// payload come back as separate text frames, followed by a normal close.
// Closing the socket early cancels the operation.
func (h *Handler) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	op, ok := h.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	logger := log.With().Str("operation", op.Name()).Str("remote", r.RemoteAddr).Str("transport", "websocket").Logger()

	conn.SetReadLimit(maxInputBytes)
	_, input, err := conn.ReadMessage()
	if err != nil {
		logger.Debug().Err(err).Msg("no input received")
		return
	}
	if err := op.Validate(input); err != nil {
		closeWithReason(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// any further read failing means the client went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	write := func(s string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(s))
	}

	payload, err := op.Invoke(ctx, input, write)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug().Msg("stream aborted by client")
			return
		}
		logger.Error().Err(err).Msg("stream failed")
		closeWithReason(conn, websocket.CloseInternalServerErr, errors.Cause(err).Error())
		return
	}

	if err := write(Sentinel); err != nil {
		logger.Warn().Err(err).Msg("could not write sentinel")
		return
	}
	if err := write(string(payload)); err != nil {
		logger.Warn().Err(err).Msg("could not write payload")
		return
	}
	closeWithReason(conn, websocket.CloseNormalClosure, "")
	logger.Debug().Int("payload_bytes", len(payload)).Msg("stream finished")
}
