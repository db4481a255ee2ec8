package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
)

// Handler routes WebSocket upgrades on /ws to sessions and
// POST /publish/{channel} bodies to the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Path("/ws").
		HeadersRegexp("Connection", "(?i)upgrade", "Upgrade", "(?i)websocket").
		Handler(wsHandler{s: s})
	r.Path("/publish/{channel:.+}").
		Methods(http.MethodPost).
		Handler(postHandler{s: s})

	return r
}

type wsHandler struct {
	s *Server
}

func (h wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnF("[ws/%s] Fail to upgrade connection, details: %v", r.RemoteAddr, err)
		return
	}

	limit := h.s.cfg.Session.MaxLineLength + h.s.cfg.Session.MaxPayloadSize
	h.s.serveConn(r.Context(), "ws/"+r.RemoteAddr, newWSStream(ws, int64(limit)))
}

// postHandler publishes the request body with no sending session, so every
// matching subscriber receives it.
type postHandler struct {
	s *Server
}

func (h postHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]

	var body io.Reader = r.Body
	limit := int64(h.s.cfg.Session.MaxPayloadSize)
	if limit > 0 {
		body = io.LimitReader(r.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Unable to read POST body.")
		return
	}
	if limit > 0 && int64(len(data)) > limit {
		sendError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Body must not exceed %d bytes.", limit))
		return
	}

	n := h.s.router.Publish(nil, []string{channel}, data)
	logger.DebugF("[http/%s] Published %d bytes to %s, %d deliveries", r.RemoteAddr, len(data), channel, n)
	_, _ = w.Write([]byte("OK\n"))
}

func sendError(w http.ResponseWriter, code int, str string) {
	http.Error(w, fmt.Sprintf("Error: %s. %s", http.StatusText(code), str), code)
}
