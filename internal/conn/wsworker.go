package conn

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State tracks a worker's connection lifecycle.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
)

// WSCallbacks are invoked from the worker goroutine. OnData is called
// synchronously per inbound frame, so inbound events are processed strictly
// in the order received.
type WSCallbacks struct {
	// OnConnect runs after each successful dial; used to send initial
	// subscribe frames. A returned error tears the connection down and
	// retries.
	OnConnect func(conn *websocket.Conn) error
	// OnData receives each inbound frame.
	OnData func(frame []byte)
	// OnDisconnect is told about any transport error or clean close.
	OnDisconnect func(err error)
}

// WSWorker maintains a WebSocket connection on a dedicated goroutine,
// reconnecting with bounded backoff until Stop is called.
type WSWorker struct {
	name      string
	url       string
	callbacks WSCallbacks
	dialer    *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

// NewWSWorker creates a worker for the given ws:// URL. name prefixes log
// lines.
func NewWSWorker(name, url string, callbacks WSCallbacks) *WSWorker {
	return &WSWorker{
		name:      name,
		url:       url,
		callbacks: callbacks,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		state:  StateDisconnected,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (w *WSWorker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (w *WSWorker) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go w.run()
}

// Stop closes the socket, wakes the worker, and joins it.
func (w *WSWorker) Stop() {
	w.mu.Lock()
	if w.stopped || !w.started {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.state = StateDisconnecting
	close(w.stopCh)
	if w.conn != nil {
		w.conn.Close()
	}
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.state = StateDisconnected
	w.mu.Unlock()
}

// SendJSON writes a JSON frame on the current connection.
func (w *WSWorker) SendJSON(payload any) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(payload)
}

func (w *WSWorker) run() {
	defer close(w.doneCh)

	backoff := NewBackoff(time.Second, 30*time.Second)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		w.setState(StateConnecting)
		conn, _, err := w.dialer.Dial(w.url, nil)
		if err != nil {
			log.Printf("%s: connect to %s failed: %v", w.name, w.url, err)
			w.setState(StateDisconnected)
			if !w.sleep(backoff.Next()) {
				return
			}
			continue
		}

		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			conn.Close()
			return
		}
		w.conn = conn
		w.state = StateConnected
		w.mu.Unlock()

		backoff.Reset()
		log.Printf("%s: connected to %s", w.name, w.url)

		if w.callbacks.OnConnect != nil {
			if err := w.callbacks.OnConnect(conn); err != nil {
				log.Printf("%s: on-connect failed: %v", w.name, err)
				w.dropConn(err)
				if !w.sleep(backoff.Next()) {
					return
				}
				continue
			}
		}

		readErr := w.readLoop(conn)
		w.dropConn(readErr)

		select {
		case <-w.stopCh:
			return
		default:
		}

		if !w.sleep(backoff.Next()) {
			return
		}
	}
}

func (w *WSWorker) readLoop(conn *websocket.Conn) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if w.callbacks.OnData != nil {
			w.callbacks.OnData(frame)
		}
	}
}

func (w *WSWorker) dropConn(err error) {
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	if !w.stopped {
		w.state = StateDisconnected
	}
	w.mu.Unlock()

	if w.callbacks.OnDisconnect != nil {
		w.callbacks.OnDisconnect(err)
	}
}

func (w *WSWorker) setState(state State) {
	w.mu.Lock()
	if !w.stopped {
		w.state = state
	}
	w.mu.Unlock()
}

// sleep waits for the delay or for Stop; returns false when stopping.
func (w *WSWorker) sleep(delay time.Duration) bool {
	select {
	case <-w.stopCh:
		return false
	case <-time.After(delay):
		return true
	}
}
