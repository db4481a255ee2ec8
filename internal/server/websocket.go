package server

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// wsStream presents a WebSocket as a byte stream. Inbound messages are read
// back to back; each outbound write is one binary message.
type wsStream struct {
	ws     *websocket.Conn
	reader io.Reader
}

func newWSStream(ws *websocket.Conn, readLimit int64) *wsStream {
	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}
	return &wsStream{ws: ws}
}

func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.ws.NextReader()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			if err != nil {
				return 0, err
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if errors.Is(err, io.EOF) {
			w.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := w.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) SetWriteDeadline(t time.Time) error {
	return w.ws.SetWriteDeadline(t)
}

func (w *wsStream) Close() error {
	return w.ws.Close()
}
