// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"math"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/dtn7/ttalk-go/pkg/messenger"
	"github.com/dtn7/ttalk-go/pkg/msg"
	"github.com/dtn7/ttalk-go/pkg/storage"
)

// exchange files between two peers over the filesystem.
type exchange struct {
	directory  string
	knownFiles sync.Map

	client  *msg.ClientConnection[msg.Variant]
	codec   msg.Codec[msg.Variant]
	store   *storage.Store
	watcher *fsnotify.Watcher

	closeChan    chan os.Signal
	receivedChan chan *fileMessage
}

// startExchange to exchange files with a peer.
func startExchange(args []string) {
	if len(args) != 4 && len(args) != 5 {
		printUsage()
	}

	var (
		messengerUrl = args[0]
		own          = ownAddress(args[1])
		peer         = args[2]
		directory    = args[3]

		err error
	)

	ex := &exchange{
		directory:    directory,
		closeChan:    make(chan os.Signal, 1),
		receivedChan: make(chan *fileMessage, 16),
	}

	signal.Notify(ex.closeChan, os.Interrupt)

	if len(args) == 5 {
		if ex.store, err = storage.NewStore(args[4]); err != nil {
			printFatal(err, "Opening store errored")
		}
	}

	if ex.codec, err = newExchangeCodec(); err != nil {
		printFatal(err, "Creating codec errored")
	}

	ms, err := parseMessenger(messengerUrl, own)
	if err != nil {
		printFatal(err, "Parsing messenger errored")
	}
	defer ms.Close()

	if ex.client, err = msg.NewClientConnection(peer, own, ms.factory, ex.codec); err != nil {
		printFatal(err, "Creating connection errored")
	}

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = ex.watcher.Add(directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	if err = ex.client.Start(ex.handleMessage); err != nil {
		printFatal(err, "Starting connection errored")
	}

	ex.restore()
	ex.handler()
}

// handleMessage is called by the connection for each received message.
func (ex *exchange) handleMessage(payload msg.Variant) {
	if fm, ok := payload.(*fileMessage); ok {
		ex.receivedChan <- fm
	} else {
		log.WithField("message", payload).Warn("Ignoring unknown message")
	}
}

// restore resends unsent files and writes unhandled ones from a previous run.
func (ex *exchange) restore() {
	if ex.store == nil {
		return
	}

	unsent, unhandled, err := storage.Restore(ex.store, ex.client.Address(), ex.codec)
	if err != nil {
		log.WithError(err).Warn("Restoring rescued messages was incomplete")
	}

	for _, e := range unhandled {
		if fm, ok := e.Payload.(*fileMessage); ok {
			ex.writeFile(fm)
		}
	}
	for _, e := range unsent {
		if err := ex.client.Send(e.Payload); err != nil {
			log.WithError(err).WithField("message", e).Error("Resending rescued message errored")
		}
	}

	log.WithFields(log.Fields{
		"unsent":    len(unsent),
		"unhandled": len(unhandled),
	}).Info("Restored rescued messages")

	if err := ex.store.Purge(ex.client.Address()); err != nil {
		log.WithError(err).Warn("Purging rescued messages errored")
	}
}

// shutdown the connection and rescue its pending messages.
func (ex *exchange) shutdown() {
	_ = ex.watcher.Close()

	if err := ex.client.Stop(); err != nil {
		log.WithError(err).Warn("Stopping connection errored")
	}

	if ex.store != nil {
		if err := storage.Rescue(ex.store, ex.client.Connection(), ex.codec); err != nil {
			log.WithError(err).Error("Rescuing pending messages errored")
		}
		if err := ex.store.Close(); err != nil {
			log.WithError(err).Warn("Closing store errored")
		}
	}

	_ = ex.client.Kill()
}

// cleanFilepath creates a relative path from the initial path to a new file's path.
func (ex *exchange) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(ex.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Fatal("Failed to clean file path")
		return ""
	} else {
		return rel
	}
}

func (ex *exchange) handler() {
	defer ex.shutdown()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case <-ex.client.Connection().Done():
			log.WithError(ex.client.Connection().Err()).Error("Connection terminated")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.readNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case fm := <-ex.receivedChan:
			ex.writeFile(fm)
		}
	}
}

func (ex *exchange) writeFile(fm *fileMessage) {
	name, err := fm.cleanName()
	if err != nil {
		log.WithError(err).Warn("Dropping received file")
		return
	}

	filePath := path.Join(ex.directory, name)
	logger := log.WithFields(log.Fields{
		"file": filePath,
		"size": len(fm.Data),
	})

	ex.knownFiles.Store(ex.cleanFilepath(filePath), struct{}{})

	if err := os.WriteFile(filePath, fm.Data, 0600); err != nil {
		logger.WithError(err).Error("Writing file errored")
		return
	}

	logger.Info("Saved received file")
}

func (ex *exchange) readNewFile(e fsnotify.Event) {
	for i := 0; i < 5; i++ {
		if data, err := os.ReadFile(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading file errored, retrying..")
		} else if err := ex.client.Send(&fileMessage{Name: filepath.Base(e.Name), Data: data}); errors.Is(err, messenger.ErrPayloadTooLarge) {
			// Known, so that it is not offered again on each write.
			ex.knownFiles.Store(ex.cleanFilepath(e.Name), struct{}{})
			log.WithError(err).WithFields(log.Fields{
				"file": e.Name,
				"size": len(data),
			}).Warn("Refusing file, which is too large for the messenger")
			return
		} else if err != nil {
			log.WithError(err).WithField("file", e.Name).Error("Sending file errored")
			return
		} else {
			ex.knownFiles.Store(ex.cleanFilepath(e.Name), struct{}{})
			log.WithFields(log.Fields{
				"file": e.Name,
				"size": len(data),
			}).Info("Sent file")
			return
		}

		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}
