// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// relayWriteTimeout bounds writing a frame to a slow peer. Afterwards, the
// payload is considered lost.
const relayWriteTimeout = time.Second

// relayBindTimeout bounds the wait for a new connection's relayBind.
const relayBindTimeout = 10 * time.Second

// Relay forwards payloads between WebSocket connected relayMessengers. Each
// connection binds exactly one address and one address is bound at most once.
//
// The Relay is a http.Handler and offers the following routes:
//
//	/ws        WebSocket endpoint for a RelayFactory
//	/bindings  JSON array of all bound addresses
type Relay struct {
	router   *mux.Router
	upgrader websocket.Upgrader

	bindTimeout time.Duration

	mutex   sync.RWMutex
	clients map[string]*relayClient
	closed  bool
}

// NewRelay creates a new Relay. Its ServeHTTP method must be bound to a HTTP server.
func NewRelay() *Relay {
	relay := &Relay{
		router:      mux.NewRouter(),
		bindTimeout: relayBindTimeout,
		clients:     make(map[string]*relayClient),
	}

	relay.router.HandleFunc("/ws", relay.handleWebSocket).Methods(http.MethodGet)
	relay.router.HandleFunc("/bindings", relay.handleBindings).Methods(http.MethodGet)

	return relay
}

// ServeHTTP dispatches requests to the Relay's routes.
func (relay *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	relay.router.ServeHTTP(w, r)
}

// Bindings returns all currently bound addresses, sorted.
func (relay *Relay) Bindings() (addrs []string) {
	relay.mutex.RLock()
	defer relay.mutex.RUnlock()

	addrs = make([]string, 0, len(relay.clients))
	for addr := range relay.clients {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return
}

// Close all connections. New connections will be refused afterwards.
func (relay *Relay) Close() error {
	relay.mutex.Lock()
	relay.closed = true
	clients := make([]*relayClient, 0, len(relay.clients))
	for _, client := range relay.clients {
		clients = append(clients, client)
	}
	relay.mutex.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
	}

	log.WithField("clients", len(clients)).Info("Relay closed")
	return nil
}

// handleBindings processes /bindings GET requests.
func (relay *Relay) handleBindings(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(relay.Bindings()); err != nil {
		log.WithError(err).Warn("Failed to write relay bindings")
	}
}

// handleWebSocket upgrades a /ws request and serves the relayClient.
func (relay *Relay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, connErr := relay.upgrader.Upgrade(w, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	client := &relayClient{conn: conn}
	defer func() { _ = conn.Close() }()

	if err := relay.register(client); err != nil {
		log.WithError(err).WithField("peer", conn.RemoteAddr().String()).Info("Relay refused connection")
		return
	}
	defer relay.unregister(client)

	relay.serve(client)
}

// register awaits the client's relayBind and answers with a relayStatus.
func (relay *Relay) register(client *relayClient) error {
	if err := client.conn.SetReadDeadline(time.Now().Add(relay.bindTimeout)); err != nil {
		return err
	}

	frame, err := readRelayFrame(client.conn)
	if err != nil {
		return err
	}

	if err := client.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	bind, ok := frame.(*relayBind)
	if !ok {
		status := &relayStatus{status: relayStatusInvalid, message: "expected a binding"}
		_ = client.write(status)
		return status.err()
	}

	status := &relayStatus{status: relayStatusOk}

	relay.mutex.Lock()
	switch _, exists := relay.clients[bind.address]; {
	case bind.address == "":
		status = &relayStatus{status: relayStatusInvalid, message: "empty address"}
	case exists:
		status = &relayStatus{status: relayStatusInUse, message: bind.address}
	case relay.closed:
		status = &relayStatus{status: relayStatusInvalid, message: "relay is closed"}
	default:
		client.address = bind.address
		relay.clients[bind.address] = client
	}
	relay.mutex.Unlock()

	if err := client.write(status); err != nil {
		if status.status == relayStatusOk {
			relay.unregister(client)
		}
		return err
	}

	if err := status.err(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"address": client.address,
		"peer":    client.conn.RemoteAddr().String(),
	}).Info("Relay bound address")
	return nil
}

// unregister a client's address.
func (relay *Relay) unregister(client *relayClient) {
	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	if relay.clients[client.address] == client {
		delete(relay.clients, client.address)

		log.WithField("address", client.address).Info("Relay released address")
	}
}

// serve forwards the client's packets until its connection breaks.
func (relay *Relay) serve(client *relayClient) {
	var logger = log.WithField("address", client.address)

	for {
		frame, err := readRelayFrame(client.conn)
		if err != nil {
			if netErr, ok := err.(*net.OpError); ok && netErr.Err.Error() == "use of closed network connection" {
				logger.WithError(err).Debug("Relay's reader errored due to closed network connection")
			} else if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Relay's peer closed the connection")
			} else {
				logger.WithError(err).Info("Relay's reader errored")
			}
			return
		}

		packet, ok := frame.(*relayPacket)
		if !ok {
			logger.WithField("frame", frame).Warn("Relay received an unexpected frame")
			continue
		}

		relay.forward(client.address, packet)
	}
}

// forward a packet to its recipient. Unknown recipients and failed writes
// result in a silently dropped payload.
func (relay *Relay) forward(from string, packet *relayPacket) {
	relay.mutex.RLock()
	recipient, ok := relay.clients[packet.peer]
	relay.mutex.RUnlock()

	var logger = log.WithFields(log.Fields{
		"from": from,
		"to":   packet.peer,
	})

	if !ok {
		logger.Debug("Relay dropped payload for an unbound address")
		return
	}

	if err := recipient.write(&relayPacket{peer: from, payload: packet.payload}); err != nil {
		logger.WithError(err).Info("Relay dropped payload, writing errored; closing recipient")

		// A failed write leaves the WebSocket in an unusable state.
		_ = recipient.conn.Close()
	}
}

// relayClient is the Relay's side of a relayMessenger.
type relayClient struct {
	writeMutex sync.Mutex

	conn    *websocket.Conn
	address string
}

func (client *relayClient) write(frame relayFrame) error {
	client.writeMutex.Lock()
	defer client.writeMutex.Unlock()

	_ = client.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
	return writeRelayFrame(client.conn, frame)
}
