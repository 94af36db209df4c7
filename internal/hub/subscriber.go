package hub

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vibin-audio/vibin-go/internal/model"
)

// sendBuffer bounds the per-client outbound queue. A client that cannot keep
// up is disconnected rather than allowed to stall the adapters.
const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Subscribers are household-LAN clients; no origin policy applies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the outbound wire form of one update message.
type envelope struct {
	ID       string                  `json:"id"`
	ClientID string                  `json:"client_id"`
	Time     int64                   `json:"time"`
	Type     model.UpdateMessageType `json:"type"`
	Payload  any                     `json:"payload"`
}

// ServeWS upgrades the connection and streams update messages. The priming
// snapshot is enqueued atomically before any live update, then the client
// receives every message until it disconnects.
func ServeWS(h *Hub, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("HUB: websocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	send := make(chan Message, sendBuffer)
	closed := make(chan struct{})

	unsubscribe := h.Subscribe(func(message Message) {
		select {
		case send <- message:
		default:
			// Slow client; drop it rather than block the adapter.
			select {
			case <-closed:
			default:
				close(closed)
			}
		}
	})

	log.Printf("HUB: client %s connected from %s", clientID, r.RemoteAddr)

	// Reader goroutine: subscribers send nothing meaningful, but reading
	// surfaces disconnects promptly.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				select {
				case <-closed:
				default:
					close(closed)
				}
				return
			}
		}
	}()

	writeLoop(ws, clientID, send, closed)

	unsubscribe()
	ws.Close()
	log.Printf("HUB: client %s disconnected", clientID)
}

func writeLoop(ws *websocket.Conn, clientID string, send <-chan Message, closed <-chan struct{}) {
	for {
		select {
		case <-closed:
			return
		case message := <-send:
			frame := envelope{
				ID:       uuid.NewString(),
				ClientID: clientID,
				Time:     time.Now().UnixMilli(),
				Type:     message.Type,
				Payload:  message.Payload,
			}
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
