// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ttalk-go/pkg/msg"
)

// sendTimeout limits how long the send command waits for acknowledgments.
const sendTimeout = 30 * time.Second

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	signal.Stop(signalChan)
}

// sendMessages for the "send" CLI option.
func sendMessages(args []string) {
	if len(args) < 4 {
		printUsage()
	}

	var (
		messengerUrl = args[0]
		own          = ownAddress(args[1])
		peer         = args[2]
		texts        = args[3:]
	)

	ms, err := parseMessenger(messengerUrl, own)
	if err != nil {
		printFatal(err, "Parsing messenger errored")
	}
	defer ms.Close()

	client, err := msg.NewClientConnection[string](peer, own, ms.factory, msg.NewTextCodec())
	if err != nil {
		printFatal(err, "Creating connection errored")
	}
	if err := client.Start(func(payload string) {
		fmt.Printf("%s: %s\n", peer, payload)
	}); err != nil {
		printFatal(err, "Starting connection errored")
	}

	for _, text := range texts {
		if err := client.Send(text); err != nil {
			printFatal(err, "Sending message errored")
		}
	}

	acked := client.Connection().WaitSent(sendTimeout)
	if err := client.Stop(); err != nil {
		log.WithError(err).Warn("Stopping connection errored")
	}

	if unsent, err := client.Unsent(); err == nil && len(unsent) > 0 {
		log.WithField("unsent", len(unsent)).Error("Not all messages were acknowledged")
	}
	_ = client.Kill()

	if !acked {
		os.Exit(1)
	}
}

// listenMessages for the "listen" CLI option.
func listenMessages(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var (
		messengerUrl = args[0]
		own          = ownAddress(args[1])
	)

	ms, err := parseMessenger(messengerUrl, own)
	if err != nil {
		printFatal(err, "Parsing messenger errored")
	}
	defer ms.Close()

	server, err := msg.NewServerConnection[string](own, ms.factory, msg.NewTextCodec())
	if err != nil {
		printFatal(err, "Creating connection errored")
	}
	if err := server.Start(func(from string, payload string) {
		fmt.Printf("%s: %s\n", from, payload)
	}); err != nil {
		printFatal(err, "Starting connection errored")
	}

	log.WithField("address", own).Info("Listening for messages")
	waitUntilDone(server.Connection())
	_ = server.Kill()
}

// echoMessages for the "echo" CLI option.
func echoMessages(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var (
		messengerUrl = args[0]
		own          = ownAddress(args[1])
	)

	ms, err := parseMessenger(messengerUrl, own)
	if err != nil {
		printFatal(err, "Parsing messenger errored")
	}
	defer ms.Close()

	server, err := msg.NewServerConnection[string](own, ms.factory, msg.NewTextCodec())
	if err != nil {
		printFatal(err, "Creating connection errored")
	}
	if err := server.Start(func(from string, payload string) {
		logger := log.WithFields(log.Fields{
			"peer":    from,
			"message": payload,
		})

		if err := server.Send(from, strings.ToUpper(payload)); err != nil {
			logger.WithError(err).Warn("Echoing message errored")
		} else {
			logger.Info("Echoed message")
		}
	}); err != nil {
		printFatal(err, "Starting connection errored")
	}

	log.WithField("address", own).Info("Echoing messages")
	waitUntilDone(server.Connection())
	_ = server.Kill()
}

// waitUntilDone blocks until a SIGINT appears or the Connection terminated on its own.
func waitUntilDone[M any](conn *msg.Connection[M]) {
	sigint := make(chan struct{})
	go func() {
		waitSigint()
		close(sigint)
	}()

	select {
	case <-sigint:
		log.Info("Received interrupt signal")

	case <-conn.Done():
		if err := conn.Err(); err != nil && !errors.Is(err, msg.ErrKilled) {
			log.WithError(err).Error("Connection failed")
		}
	}
}
