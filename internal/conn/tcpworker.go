package conn

import (
	"bufio"
	"errors"
	"log"
	"net"
	"sync"
	"time"
)

// ErrNotConnected is returned when a send is attempted without a live
// connection.
var ErrNotConnected = errors.New("not connected")

// TCPCallbacks mirror WSCallbacks for the line-framed TCP worker. OnData
// receives one frame per call with the terminator stripped.
type TCPCallbacks struct {
	OnConnect    func(send func(line []byte) error) error
	OnData       func(line []byte)
	OnDisconnect func(err error)
}

// TCPWorker maintains a line-oriented TCP connection on a dedicated
// goroutine, reconnecting with bounded backoff until Stop is called. Frames
// are delimited by a single terminator byte.
type TCPWorker struct {
	name       string
	addr       string
	terminator byte
	callbacks  TCPCallbacks

	mu    sync.Mutex
	conn  net.Conn
	state State

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

// NewTCPWorker creates a worker for the given host:port address.
func NewTCPWorker(name, addr string, terminator byte, callbacks TCPCallbacks) *TCPWorker {
	return &TCPWorker{
		name:       name,
		addr:       addr,
		terminator: terminator,
		callbacks:  callbacks,
		state:      StateDisconnected,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (w *TCPWorker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (w *TCPWorker) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go w.run()
}

// Stop closes the connection, wakes the worker, and joins it.
func (w *TCPWorker) Stop() {
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

// Send writes one frame, appending the terminator.
func (w *TCPWorker) Send(line []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	frame := make([]byte, 0, len(line)+1)
	frame = append(frame, line...)
	frame = append(frame, w.terminator)
	_, err := conn.Write(frame)
	return err
}

func (w *TCPWorker) run() {
	defer close(w.doneCh)

	backoff := NewBackoff(time.Second, 30*time.Second)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		w.setState(StateConnecting)
		conn, err := net.DialTimeout("tcp", w.addr, 10*time.Second)
		if err != nil {
			log.Printf("%s: connect to %s failed: %v", w.name, w.addr, err)
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
		log.Printf("%s: connected to %s", w.name, w.addr)

		if w.callbacks.OnConnect != nil {
			if err := w.callbacks.OnConnect(w.Send); err != nil {
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

// readLoop reads terminator-delimited frames. Read deadlines are polled at
// 500ms so Stop can interrupt a blocking recv.
func (w *TCPWorker) readLoop(conn net.Conn) error {
	reader := bufio.NewReader(conn)
	var pending []byte

	for {
		select {
		case <-w.stopCh:
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			return err
		}

		chunk, err := reader.ReadBytes(w.terminator)
		pending = append(pending, chunk...)

		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		// Strip terminator and deliver.
		line := pending[:len(pending)-1]
		pending = nil
		if w.callbacks.OnData != nil && len(line) > 0 {
			w.callbacks.OnData(line)
		}
	}
}

func (w *TCPWorker) dropConn(err error) {
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

func (w *TCPWorker) setState(state State) {
	w.mu.Lock()
	if !w.stopped {
		w.state = state
	}
	w.mu.Unlock()
}

func (w *TCPWorker) sleep(delay time.Duration) bool {
	select {
	case <-w.stopCh:
		return false
	case <-time.After(delay):
		return true
	}
}
