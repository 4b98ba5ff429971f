package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler upgrades the request and keeps the connection subscribed to the
// hub until it closes.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			h.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.CloseNow()

		newClient(h, conn).serve(r.Context())
	}
}
