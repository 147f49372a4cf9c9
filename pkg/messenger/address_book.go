// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"fmt"
	"net"
	"sort"
	"sync"
)

// AddressBook maps messenger addresses to UDP endpoints. It is safe for
// concurrent use and might be filled by static configuration or a discovery.
type AddressBook struct {
	mutex   sync.RWMutex
	entries map[string]*net.UDPAddr
}

// NewAddressBook creates an empty AddressBook.
func NewAddressBook() *AddressBook {
	return &AddressBook{
		entries: make(map[string]*net.UDPAddr),
	}
}

// Set or replace the UDP endpoint of an address.
func (book *AddressBook) Set(address string, udpAddr *net.UDPAddr) {
	book.mutex.Lock()
	defer book.mutex.Unlock()

	book.entries[address] = udpAddr
}

// SetString resolves a "host:port" string and stores it for the address.
func (book *AddressBook) SetString(address, hostPort string) error {
	if address == "" {
		return ErrInvalidAddress
	}

	udpAddr, err := net.ResolveUDPAddr("udp", hostPort)
	if err != nil {
		return fmt.Errorf("resolving %s for %s failed: %w", hostPort, address, err)
	}

	book.Set(address, udpAddr)
	return nil
}

// Lookup the UDP endpoint of an address.
func (book *AddressBook) Lookup(address string) (udpAddr *net.UDPAddr, ok bool) {
	book.mutex.RLock()
	defer book.mutex.RUnlock()

	udpAddr, ok = book.entries[address]
	return
}

// Remove an address.
func (book *AddressBook) Remove(address string) {
	book.mutex.Lock()
	defer book.mutex.Unlock()

	delete(book.entries, address)
}

// Addresses known to this AddressBook, sorted.
func (book *AddressBook) Addresses() (addrs []string) {
	book.mutex.RLock()
	defer book.mutex.RUnlock()

	for addr := range book.entries {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return
}
