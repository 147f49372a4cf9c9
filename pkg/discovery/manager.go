// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"

	"github.com/dtn7/ttalk-go/pkg/messenger"
)

// Manager publishes own Announcements and stores received ones in an AddressBook.
type Manager struct {
	book *messenger.AddressBook
	own  map[string]struct{}

	stopChan4 chan struct{}
	stopChan6 chan struct{}
}

// NewManager for Announcements will be created and started.
func NewManager(
	book *messenger.AddressBook, announcements []Announcement,
	announcementInterval time.Duration, ipv4, ipv6 bool) (*Manager, error) {

	var manager = newManager(book, announcements)
	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}

	log.WithFields(log.Fields{
		"interval":      announcementInterval,
		"IPv4":          ipv4,
		"IPv6":          ipv6,
		"announcements": announcements,
	}).Info("Starting discovery Manager")

	msg, err := MarshalAnnouncements(announcements)
	if err != nil {
		return nil, err
	}

	sets := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
	}{
		{ipv4, address4, manager.stopChan4, peerdiscovery.IPv4},
		{ipv6, address6, manager.stopChan6, peerdiscovery.IPv6},
	}

	for _, set := range sets {
		if !set.active {
			continue
		}

		set := peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: set.multicastAddress,
			Payload:          msg,
			Delay:            announcementInterval,
			TimeLimit:        -1,
			StopChan:         set.stopChan,
			AllowSelf:        true,
			IPVersion:        set.ipVersion,
			Notify:           manager.notify,
		}

		runDiscover := func(settings peerdiscovery.Settings) ([]peerdiscovery.Discovered, error) {
			return peerdiscovery.Discover(settings)
		}
		if err := discover(set, runDiscover, discoverStartupWait); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

// discoverStartupWait is the time a starting discovery may fail within.
const discoverStartupWait = time.Second

// discoverFunc runs a discovery until its StopChan is signaled.
type discoverFunc func(settings peerdiscovery.Settings) ([]peerdiscovery.Discovered, error)

// discover runs the discoverFunc in the background and reports an error during
// its startup. The result channel is buffered, as the discovery returns much
// later on Close.
func discover(settings peerdiscovery.Settings, run discoverFunc, startupWait time.Duration) error {
	discoverErrChan := make(chan error, 1)
	go func() {
		_, discoverErr := run(settings)
		discoverErrChan <- discoverErr
	}()

	select {
	case discoverErr := <-discoverErrChan:
		return discoverErr

	case <-time.After(startupWait):
		return nil
	}
}

func newManager(book *messenger.AddressBook, announcements []Announcement) *Manager {
	manager := &Manager{
		book: book,
		own:  make(map[string]struct{}),
	}
	for _, announcement := range announcements {
		manager.own[announcement.Address] = struct{}{}
	}
	return manager
}

func (manager *Manager) notify(discovered peerdiscovery.Discovered) {
	announcements, err := UnmarshalAnnouncements(discovered.Payload)
	if err != nil {
		log.WithError(err).WithField("peer", discovered.Address).Warn(
			"Peer discovery failed to parse incoming package")
		return
	}

	for _, announcement := range announcements {
		manager.handleDiscovery(announcement, discovered.Address)
	}
}

func (manager *Manager) handleDiscovery(announcement Announcement, host string) {
	var logger = log.WithFields(log.Fields{
		"peer":         host,
		"announcement": announcement,
	})

	if _, isOwn := manager.own[announcement.Address]; isOwn {
		return
	}

	hostPort := net.JoinHostPort(host, strconv.FormatUint(uint64(announcement.Port), 10))
	if prev, ok := manager.book.Lookup(announcement.Address); ok && prev.String() == hostPort {
		return
	}

	if err := manager.book.SetString(announcement.Address, hostPort); err != nil {
		logger.WithError(err).Warn("Peer discovery failed to store announced address")
		return
	}

	logger.Info("Peer discovery found a new address")
}

// Close this Manager.
func (manager *Manager) Close() {
	for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
		if c != nil {
			c <- struct{}{}
		}
	}
}
