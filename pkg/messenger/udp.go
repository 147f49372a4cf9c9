// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// UDPFactory binds Messengers to UDP sockets. Each address must be resolvable
// by the AddressBook, both to bind an own address and to send to a peer.
type UDPFactory struct {
	book *AddressBook
}

// NewUDPFactory creates a UDPFactory for the given AddressBook.
func NewUDPFactory(book *AddressBook) *UDPFactory {
	return &UDPFactory{book: book}
}

// Book returns the AddressBook used by this UDPFactory.
func (f *UDPFactory) Book() *AddressBook {
	return f.book
}

// Bind a UDP socket for the address's endpoint from the AddressBook.
func (f *UDPFactory) Bind(address string, onReceive ReceiveFunc) (Messenger, error) {
	if address == "" {
		return nil, ErrInvalidAddress
	} else if onReceive == nil {
		return nil, fmt.Errorf("missing receive callback")
	}

	listenAddr, ok := f.book.Lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no UDP endpoint", ErrInvalidAddress, address)
	}

	lc := net.ListenConfig{Control: listenControl}
	conn, err := lc.ListenPacket(context.Background(), "udp", listenAddr.String())
	if errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("udp cannot bind %s on %v: %w", address, listenAddr, ErrAddressInUse)
	} else if err != nil {
		return nil, err
	}

	m := &udpMessenger{
		book:      f.book,
		address:   address,
		conn:      conn,
		onReceive: onReceive,
		stopSyn:   make(chan struct{}),
		stopAck:   make(chan struct{}),
	}

	go m.handler()

	log.WithFields(log.Fields{
		"address": address,
		"udp":     conn.LocalAddr(),
	}).Info("UDP messenger bound address")

	return m, nil
}

// udpMessenger is a Messenger bound to a UDP socket.
type udpMessenger struct {
	book      *AddressBook
	address   string
	conn      net.PacketConn
	onReceive ReceiveFunc

	closeMutex sync.Mutex
	closed     bool

	stopSyn chan struct{}
	stopAck chan struct{}
}

func (m *udpMessenger) handler() {
	defer close(m.stopAck)

	var (
		logger = log.WithField("address", m.address)
		buff   = make([]byte, maxDatagramSize)
	)

	for {
		n, peer, err := m.conn.ReadFrom(buff)
		if err != nil {
			select {
			case <-m.stopSyn:
				return

			default:
				logger.WithError(err).Warn("UDP messenger failed to read datagram")
				continue
			}
		}

		d, dErr := unmarshalDatagram(buff[:n])
		if dErr != nil {
			logger.WithError(dErr).WithField("peer", peer).Debug("UDP messenger dropped an invalid datagram")
			continue
		} else if d.To != m.address {
			logger.WithFields(log.Fields{
				"peer":      peer,
				"recipient": d.To,
			}).Debug("UDP messenger dropped a datagram for another address")
			continue
		}

		m.onReceive(d.Payload)
	}
}

func (m *udpMessenger) Address() string {
	return m.address
}

func (m *udpMessenger) Send(to, payload string) error {
	m.closeMutex.Lock()
	closed := m.closed
	m.closeMutex.Unlock()

	if closed {
		return ErrClosed
	}

	peer, ok := m.book.Lookup(to)
	if !ok {
		log.WithFields(log.Fields{
			"address": m.address,
			"to":      to,
		}).Debug("UDP messenger dropped payload for an unknown address")
		return nil
	}

	data, err := datagram{To: to, Payload: payload}.marshal()
	if err != nil {
		return err
	}

	_, err = m.conn.WriteTo(data, peer)
	return err
}

// CheckSize reports payloads exceeding a single datagram.
func (m *udpMessenger) CheckSize(to, payload string) error {
	return datagram{To: to, Payload: payload}.checkSize()
}

func (m *udpMessenger) Close() error {
	m.closeMutex.Lock()
	if m.closed {
		m.closeMutex.Unlock()
		return nil
	}
	m.closed = true
	m.closeMutex.Unlock()

	close(m.stopSyn)
	err := m.conn.Close()
	<-m.stopAck

	log.WithField("address", m.address).Info("UDP messenger released address")
	return err
}

func (m *udpMessenger) String() string {
	return fmt.Sprintf("udp://%s@%v", m.address, m.conn.LocalAddr())
}
