package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mnsd/internal/eventreport"
	"mnsd/internal/mns"
	"mnsd/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts same-origin requests, requests without an Origin
// header and, when CORS is enabled, the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if corsEnabled {
		for _, o := range corsAllowedOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// streamHandler godoc
// @Summary      Stream event reports for a MAS instance
// @Description  Upgrades to a websocket, registers the socket as the listener for {id} and writes one
// @Description  JSON EventMessage per routed report. The instance is unregistered when the socket closes.
// @Param        id path int true "MAS instance id (0-255)"
// @Success      101 {object} types.EventMessage
// @Failure      400 {object} types.ErrorResponse
// @Router       /instances/{id}/ws [get]
func streamHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := instanceParam(w, r)
		if !ok {
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already answered the request
			logger().Debug().Err(err).Int("instance", id).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		mb := mns.NewMailbox(mailboxSize)
		svc.RegisterCallback(id, mb)
		wsStreams.Inc()
		defer func() {
			svc.UnregisterListener(id, mb)
			mb.Close()
			wsStreams.Dec()
		}()
		log := logger().With().Int("instance", id).Str("remote", r.RemoteAddr).Logger()
		log.Info().Msg("event stream opened")

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		// The client never sends data; reading detects its close.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				log.Info().Msg("event stream closed")
				return
			case rep, ok := <-mb.C():
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(eventMessage(rep)); err != nil {
					wsFramesTotal.WithLabelValues("error").Inc()
					log.Warn().Err(err).Msg("event stream write failed")
					return
				}
				wsFramesTotal.WithLabelValues("ok").Inc()
			}
		}
	}
}

func eventMessage(r eventreport.Report) types.EventMessage {
	msg := types.EventMessage{InstanceID: r.InstanceID, Version: r.Version, Events: make([]types.Event, 0, len(r.Events))}
	for _, ev := range r.Events {
		msg.Events = append(msg.Events, types.Event(ev))
	}
	return msg
}
