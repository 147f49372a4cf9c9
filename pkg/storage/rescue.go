// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ttalk-go/pkg/msg"
)

// Rescue the unsent and unhandled envelopes of a stopped or killed Connection into the Store.
func Rescue[M any](s *Store, conn *msg.Connection[M], codec msg.Codec[M]) error {
	unsent, err := conn.Unsent()
	if err != nil {
		return err
	}
	unhandled, err := conn.Unhandled()
	if err != nil {
		return err
	}

	var errs error
	for _, set := range []struct {
		direction Direction
		envelopes []msg.Envelope[M]
	}{
		{Outbound, unsent},
		{Inbound, unhandled},
	} {
		encoded := make([]string, 0, len(set.envelopes))
		for _, e := range set.envelopes {
			if data, encErr := codec.Encode(e); encErr != nil {
				errs = multierror.Append(errs, fmt.Errorf("encoding %v failed: %w", e, encErr))
			} else {
				encoded = append(encoded, data)
			}
		}

		if saveErr := s.Save(conn.Address(), set.direction, encoded); saveErr != nil {
			errs = multierror.Append(errs, saveErr)
		}
	}

	log.WithFields(log.Fields{
		"connection": conn.Address(),
		"unsent":     len(unsent),
		"unhandled":  len(unhandled),
	}).Info("Rescued envelopes of connection")

	return errs
}

// Restore the envelopes rescued for this owner. Undecodable items are skipped and reported.
// The stored items are kept until the next Save or Purge.
func Restore[M any](s *Store, owner string, codec msg.Codec[M]) (unsent, unhandled []msg.Envelope[M], err error) {
	var errs error
	for _, set := range []struct {
		direction Direction
		target    *[]msg.Envelope[M]
	}{
		{Outbound, &unsent},
		{Inbound, &unhandled},
	} {
		encoded, loadErr := s.Load(owner, set.direction)
		if loadErr != nil {
			return nil, nil, loadErr
		}

		for i, data := range encoded {
			if e, decErr := codec.Decode(data); decErr != nil {
				errs = multierror.Append(errs, fmt.Errorf("decoding %s envelope %d failed: %w", set.direction, i, decErr))
			} else {
				*set.target = append(*set.target, e)
			}
		}
	}

	err = errs
	return
}
