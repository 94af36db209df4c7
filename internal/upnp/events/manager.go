package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// EventFunc receives parsed NOTIFY property sets. device and service are the
// names the subscription was registered under.
type EventFunc func(device, service string, properties map[string]string)

// Manager owns UPnP GENA subscriptions: one renewal worker per subscribed
// service, full re-subscribe on 412, best-effort unsubscribe on shutdown.
type Manager struct {
	subClient  *SubscriptionClient
	timeoutSec int
	bufferSec  int
	onEvent    EventFunc

	callbackBase string

	mu         sync.RWMutex
	subs       map[string]*subscription          // keyed by device/service
	properties map[string]map[string]string      // device/service -> var -> value
	stopped    bool
}

type subscription struct {
	device      string
	service     string
	eventSubURL string
	callbackURL string

	mu      sync.Mutex
	sid     string
	timeout int

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewManager creates a subscription manager. timeoutSec is the requested
// subscription timeout; bufferSec is subtracted from the granted timeout to
// pick the renewal interval (floored at 10s).
func NewManager(timeoutSec, bufferSec int, onEvent EventFunc) *Manager {
	if bufferSec < 10 {
		bufferSec = 10
	}
	return &Manager{
		subClient:  NewSubscriptionClient(10 * time.Second),
		timeoutSec: timeoutSec,
		bufferSec:  bufferSec,
		onEvent:    onEvent,
		subs:       make(map[string]*subscription),
		properties: make(map[string]map[string]string),
	}
}

// Start resolves the local callback address. port is the REST listen port;
// NOTIFY requests arrive at /upnpevents/{device}/{service}.
func (m *Manager) Start(port string) error {
	localIP, err := discoverLocalIP()
	if err != nil {
		return fmt.Errorf("discover local IP: %w", err)
	}
	m.callbackBase = fmt.Sprintf("http://%s:%s/upnpevents", localIP, port)
	log.Printf("UPNP: event manager started, callback base: %s", m.callbackBase)
	return nil
}

// Subscribe registers a subscription for one service and starts its renewal
// worker. The worker keeps the subscription alive until Stop.
func (m *Manager) Subscribe(ctx context.Context, device, service, eventSubURL string) error {
	key := device + "/" + service

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.New("manager stopped")
	}
	if _, exists := m.subs[key]; exists {
		m.mu.Unlock()
		return nil
	}
	sub := &subscription{
		device:      device,
		service:     service,
		eventSubURL: eventSubURL,
		callbackURL: fmt.Sprintf("%s/%s/%s", m.callbackBase, device, service),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	m.subs[key] = sub
	m.mu.Unlock()

	sid, timeout, err := m.subClient.Subscribe(ctx, eventSubURL, sub.callbackURL, m.timeoutSec)
	if err != nil {
		m.mu.Lock()
		delete(m.subs, key)
		m.mu.Unlock()
		return err
	}

	sub.mu.Lock()
	sub.sid = sid
	sub.timeout = timeout
	sub.mu.Unlock()

	log.Printf("UPNP: subscribed to %s on %s (SID: %s, timeout: %ds)", service, device, sid, timeout)

	go m.renewalLoop(sub)
	return nil
}

// Stop cancels all renewal workers and unsubscribes best-effort.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		close(sub.stopCh)
	}
	for _, sub := range subs {
		<-sub.doneCh

		sub.mu.Lock()
		sid := sub.sid
		sub.mu.Unlock()
		if sid == "" {
			continue
		}
		if err := m.subClient.Unsubscribe(ctx, sub.eventSubURL, sid); err != nil {
			log.Printf("UPNP: unsubscribe %s on %s failed: %v", sub.service, sub.device, err)
		}
	}

	log.Printf("UPNP: event manager stopped")
}

// HandleNotify ingests one parsed NOTIFY property set and fans it out.
func (m *Manager) HandleNotify(device, service string, properties map[string]string) {
	key := device + "/" + service

	m.mu.Lock()
	existing, ok := m.properties[key]
	if !ok {
		existing = make(map[string]string)
		m.properties[key] = existing
	}
	for name, value := range properties {
		existing[name] = value
	}
	m.mu.Unlock()

	if m.onEvent != nil {
		m.onEvent(device, service, properties)
	}
}

// Properties returns a snapshot of the last-seen evented variables, keyed by
// device/service.
func (m *Manager) Properties() map[string]map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]map[string]string, len(m.properties))
	for key, vars := range m.properties {
		inner := make(map[string]string, len(vars))
		for name, value := range vars {
			inner[name] = value
		}
		snapshot[key] = inner
	}
	return snapshot
}

// renewalLoop renews once per granted-timeout minus buffer. A 412 response
// replaces the subscription with a fresh subscribe.
func (m *Manager) renewalLoop(sub *subscription) {
	defer close(sub.doneCh)

	for {
		sub.mu.Lock()
		renewIn := sub.timeout - m.bufferSec
		sub.mu.Unlock()
		if renewIn < 10 {
			renewIn = 10
		}

		select {
		case <-sub.stopCh:
			return
		case <-time.After(time.Duration(renewIn) * time.Second):
		}

		sub.mu.Lock()
		sid := sub.sid
		sub.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		timeout, err := m.subClient.Renew(ctx, sub.eventSubURL, sid, m.timeoutSec)

		if errors.Is(err, ErrSubscriptionExpired) {
			log.Printf("UPNP: subscription expired, resubscribing %s on %s", sub.service, sub.device)
			newSID, newTimeout, subErr := m.subClient.Subscribe(ctx, sub.eventSubURL, sub.callbackURL, m.timeoutSec)
			cancel()
			if subErr != nil {
				log.Printf("UPNP: resubscribe %s on %s failed: %v", sub.service, sub.device, subErr)
				// Retry on a short interval rather than the full timeout.
				sub.mu.Lock()
				sub.timeout = m.bufferSec + 30
				sub.mu.Unlock()
				continue
			}
			sub.mu.Lock()
			sub.sid = newSID
			sub.timeout = newTimeout
			sub.mu.Unlock()
			continue
		}
		cancel()

		if err != nil {
			log.Printf("UPNP: renew %s on %s failed: %v", sub.service, sub.device, err)
			sub.mu.Lock()
			sub.timeout = m.bufferSec + 30
			sub.mu.Unlock()
			continue
		}

		sub.mu.Lock()
		sub.timeout = timeout
		sub.mu.Unlock()
	}
}

// discoverLocalIP finds the outbound interface address for callback URLs.
// The dial does not actually send data.
func discoverLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
