// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ttalk-go/pkg/discovery"
	"github.com/dtn7/ttalk-go/pkg/messenger"
)

// discoveryInterval between two multicast announcements.
const discoveryInterval = 10 * time.Second

// ownAddress returns the given address or a random one for "-".
func ownAddress(address string) string {
	if address == "-" {
		return uuid.New().String()
	}
	return address
}

// messengerSetup is a messenger.Factory together with its cleanup.
type messengerSetup struct {
	factory messenger.Factory
	closer  func()
}

// Close everything the Factory required besides the bound Messengers.
func (ms messengerSetup) Close() {
	if ms.closer != nil {
		ms.closer()
	}
}

// parseMessenger creates a messenger.Factory for the given URL, suitable to bind the own address.
func parseMessenger(rawUrl, own string) (ms messengerSetup, err error) {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return
	}

	switch u.Scheme {
	case "ws", "wss":
		ms.factory = messenger.NewRelayFactory(rawUrl)

	case "udp":
		ms, err = parseUDPMessenger(u, own)

	default:
		err = fmt.Errorf("unknown messenger scheme %q", u.Scheme)
	}
	return
}

// parsePeer splits a "name@host:port" peer definition.
func parsePeer(peer string) (name, hostPort string, err error) {
	at := strings.LastIndex(peer, "@")
	if at <= 0 || at == len(peer)-1 {
		err = fmt.Errorf("peer %q is not of the form name@host:port", peer)
		return
	}
	return peer[:at], peer[at+1:], nil
}

func parseUDPMessenger(u *url.URL, own string) (ms messengerSetup, err error) {
	book := messenger.NewAddressBook()
	if err = book.SetString(own, u.Host); err != nil {
		return
	}

	query := u.Query()
	for _, peer := range query["peer"] {
		name, hostPort, peerErr := parsePeer(peer)
		if peerErr != nil {
			err = peerErr
			return
		}
		if err = book.SetString(name, hostPort); err != nil {
			return
		}
	}

	ms.factory = messenger.NewUDPFactory(book)

	if disco := query.Get("discovery"); disco != "" {
		var ipv4, ipv6 bool
		for _, version := range strings.Split(disco, ",") {
			switch version {
			case "ipv4":
				ipv4 = true
			case "ipv6":
				ipv6 = true
			default:
				err = fmt.Errorf("unknown discovery %q", version)
				return
			}
		}

		_, portStr, splitErr := net.SplitHostPort(u.Host)
		if splitErr != nil {
			err = splitErr
			return
		}
		port, convErr := strconv.ParseUint(portStr, 10, 16)
		if convErr != nil {
			err = convErr
			return
		}

		manager, managerErr := discovery.NewManager(
			book, []discovery.Announcement{{Address: own, Port: uint(port)}},
			discoveryInterval, ipv4, ipv6)
		if managerErr != nil {
			err = managerErr
			return
		}
		ms.closer = manager.Close
	}

	log.WithFields(log.Fields{
		"own":   own,
		"peers": book.Addresses(),
	}).Debug("Created UDP messenger factory")

	return
}
