// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"
)

const dirBadger string = "db"

// ErrEmptyOwner is returned for operations without an owning address.
var ErrEmptyOwner = errors.New("owner address must not be empty")

// Store implements a storage for encoded envelopes, grouped by their owner's address.
type Store struct {
	bh *badgerhold.Store

	badgerDir string
}

// NewStore creates a new Store or opens an existing Store from the given path.
func NewStore(dir string) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh:        bh,
			badgerDir: badgerDir,
		}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Save replaces all stored envelopes of this owner and direction by the given ones.
func (s *Store) Save(owner string, direction Direction, encoded []string) error {
	if owner == "" {
		return ErrEmptyOwner
	}

	if err := s.purge(owner, direction); err != nil {
		return err
	}

	for i, e := range encoded {
		item := newEnvelopeItem(owner, direction, i, e)
		if err := s.bh.Insert(item.Id, item); err != nil {
			return fmt.Errorf("inserting %s failed: %w", item.Id, err)
		}
	}

	log.WithFields(log.Fields{
		"owner":     owner,
		"direction": direction,
		"amount":    len(encoded),
	}).Debug("Store saved envelopes")

	return nil
}

// Load all stored envelopes of this owner and direction in their saved order.
func (s *Store) Load(owner string, direction Direction) ([]string, error) {
	items, err := s.query(owner, direction)
	if err != nil {
		return nil, err
	}

	encoded := make([]string, len(items))
	for i, item := range items {
		encoded[i] = item.Encoded
	}
	return encoded, nil
}

// Purge all envelopes of this owner, independent of their direction.
func (s *Store) Purge(owner string) error {
	var errs error
	for _, direction := range []Direction{Outbound, Inbound} {
		if err := s.purge(owner, direction); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// Owners having stored envelopes.
func (s *Store) Owners() (owners []string, err error) {
	var items []EnvelopeItem
	if err = s.bh.Find(&items, nil); err != nil {
		return
	}

	known := make(map[string]struct{})
	for _, item := range items {
		if _, ok := known[item.Owner]; !ok {
			known[item.Owner] = struct{}{}
			owners = append(owners, item.Owner)
		}
	}
	sort.Strings(owners)
	return
}

func (s *Store) query(owner string, direction Direction) (items []EnvelopeItem, err error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}

	err = s.bh.Find(&items, badgerhold.Where("Owner").Eq(owner).And("Direction").Eq(string(direction)))
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	return
}

func (s *Store) purge(owner string, direction Direction) error {
	items, err := s.query(owner, direction)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := s.bh.Delete(item.Id, EnvelopeItem{}); err != nil {
			log.WithFields(log.Fields{
				"item":  item.Id,
				"error": err,
			}).Warn("Failed to delete EnvelopeItem")
			return err
		}
	}
	return nil
}
