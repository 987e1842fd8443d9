package ws

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pairsona/internal/geo"
	"pairsona/internal/obs"
	"pairsona/pkg/interfaces"
	"pairsona/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Clients are anonymous; there is no same-origin session to protect.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests to websocket handles and feeds them to
// the pairing engine. It owns no state beyond its collaborators.
type Handler struct {
	registrar interfaces.Registrar
	resolver  interfaces.LocationResolver
	opts      Options
}

func NewHandler(registrar interfaces.Registrar, resolver interfaces.LocationResolver, opts Options) *Handler {
	return &Handler{
		registrar: registrar,
		resolver:  resolver,
		opts:      opts,
	}
}

// HandleWebSocket accepts one client. An upgrade failure is a handshake
// failure: the handle is treated as immediately closed and never enters
// the waiting pool.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r)
	langs := geo.PreferredLanguages(r.Header.Get("Accept-Language"))
	location := h.resolver.Resolve(addr, langs)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		obs.Error("ws.upgrade", obs.Fields{"err": err.Error(), "addr": addr})
		obs.ErrorsTotal.WithLabelValues("upgrade").Inc()
		return
	}

	meta := types.ClientMeta{
		Addr:      addr,
		UserAgent: r.UserAgent(),
		Location:  location,
	}
	handle := NewConnection(conn, meta, h.opts)

	if err := h.registrar.Register(handle); err != nil {
		obs.Error("ws.register", obs.Fields{"err": err.Error(), "id": handle.ID()})
		_ = handle.Transition(types.StateClosed)
		_ = handle.CloseWithNotice(websocket.CloseGoingAway, "not accepting connections")
		return
	}

	obs.Debug("ws.accept", obs.Fields{
		"id":      handle.ID(),
		"addr":    addr,
		"country": location.CountryCode,
	})
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to the
// socket's remote address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
