package gateway

import (
	"context"
	"encoding/json"
	"ito/internal/domain"
	"ito/internal/game"
	"ito/internal/logger"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type websocketConnection struct {
	socket *websocket.Conn
}

func (wc *websocketConnection) Write(data []byte) error {
	wc.socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	return wc.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close(errCode string) {
	wc.socket.SetWriteDeadline(time.Now().Add(time.Second * 20))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, errCode))
	wc.socket.Close()
}

func NewWebsocketConnection(conn *websocket.Conn) websocketConnection {
	conn.SetReadDeadline(time.Now().Add(time.Minute))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})
	return websocketConnection{conn}
}

// Event is one frame of the room feed.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	EventPhase        = "phase"
	EventRoster       = "roster"
	EventHand         = "hand"
	EventOrder        = "order"
	EventVerdict      = "verdict"
	EventAwaitingHost = "awaiting-host"
	EventEvicted      = "evicted"
	EventRoomClosed   = "room-closed"
)

// feedClient buffers the events of one websocket. A client that falls a full
// outbox behind is dropped rather than stalling the session.
type feedClient struct {
	playerID string
	outbox   chan []byte
	closed   chan struct{}
	once     sync.Once
	reason   string
}

func newFeedClient(playerID string) *feedClient {
	return &feedClient{
		playerID: playerID,
		outbox:   make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (c *feedClient) send(typ string, data any) {
	frame, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		return
	}
	select {
	case c.outbox <- frame:
	case <-c.closed:
	default:
		c.close("slow-consumer")
	}
}

func (c *feedClient) close(reason string) {
	c.once.Do(func() {
		c.reason = reason
		close(c.closed)
	})
}

// listener turns session callbacks into feed events. Hands are filtered to the
// caller's own cards.
func (c *feedClient) listener() game.Listener {
	return game.ListenerFuncs{
		PhaseChanged:  func(p domain.Phase) { c.send(EventPhase, p) },
		RosterChanged: func(players map[string]domain.Player) { c.send(EventRoster, players) },
		CardsDealt: func(cards map[string][]domain.Card) {
			hand := slices.Clone(cards[c.playerID])
			c.send(EventHand, hand)
		},
		OrderChanged: func(order []domain.Placement) { c.send(EventOrder, order) },
		Verdict:      func(success bool) { c.send(EventVerdict, success) },
		AwaitingHostDecision: func(tied []string) {
			c.send(EventAwaitingHost, tied)
		},
		Evicted: func() {
			c.send(EventEvicted, nil)
			c.close("evicted")
		},
		RoomClosed: func() {
			c.send(EventRoomClosed, nil)
			c.close("room-closed")
		},
	}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Origins are already filtered by the server middleware.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

// FeedHandler streams the room to a websocket. The host's feed also drives
// the automatic steps of the round.
func (h *Handler) FeedHandler(ctx *gin.Context) {
	roomID := ctx.Param("roomId")
	playerID := ctx.GetString(playerKey)

	room, err := h.game.Room(ctx.Request.Context(), roomID)
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	if !room.HasPlayer(playerID) {
		h.abortWithError(ctx, domain.ErrPlayerNotFound)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}
	socket := NewWebsocketConnection(conn)
	client := newFeedClient(playerID)

	// The request context ends with the handler; the session must outlive it.
	session, err := h.game.Open(context.WithoutCancel(ctx.Request.Context()), roomID, playerID, client.listener())
	if err != nil {
		_, body := statusOf(err)
		socket.Close(body)
		return
	}
	log := logger.ForRoom(h.log, roomID).With().Str("player_id", playerID).Logger()
	log.Debug().Msg("feed opened")

	go h.readPump(&socket, client)
	h.writePump(&socket, client)

	session.Close()
	socket.Close(client.reason)
	log.Debug().Str("reason", client.reason).Msg("feed closed")
}

// readPump only watches for disconnects and floods; the feed is one way.
func (h *Handler) readPump(socket *websocketConnection, client *feedClient) {
	limiter := rate.NewLimiter(rate.Limit(h.opts.FrameRate), h.opts.FrameBurst)
	for {
		if _, err := socket.Read(); err != nil {
			client.close("")
			return
		}
		if !limiter.Allow() {
			client.close(ErrRateLimitedStr)
			return
		}
	}
}

func (h *Handler) writePump(socket *websocketConnection, client *feedClient) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame := <-client.outbox:
			if err := socket.Write(frame); err != nil {
				client.close("")
				return
			}
		case <-ticker.C:
			if err := socket.Ping(); err != nil {
				client.close("")
				return
			}
		case <-client.closed:
			// Flush what the session queued before closing, e.g. the
			// eviction notice.
			for {
				select {
				case frame := <-client.outbox:
					if socket.Write(frame) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
