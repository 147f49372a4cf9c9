// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/dtn7/ttalk-go/pkg/messenger"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Relay   relayConf
	Logging logConf
}

// relayConf describes the Relay-configuration block.
type relayConf struct {
	Listen string
	Prefix string
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// parseLogging applies the Logging-configuration block to logrus' standard logger.
func parseLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// parseRelay creates the Relay and its HTTP server based on the given TOML configuration.
func parseRelay(filename string) (relay *messenger.Relay, server *http.Server, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	parseLogging(conf.Logging)

	if conf.Relay.Listen == "" {
		err = fmt.Errorf("relay.listen is empty")
		return
	}

	relay = messenger.NewRelay()

	var handler http.Handler = relay
	if prefix := strings.TrimSuffix(conf.Relay.Prefix, "/"); prefix != "" {
		if !strings.HasPrefix(prefix, "/") {
			err = fmt.Errorf("relay.prefix %q must start with a slash", conf.Relay.Prefix)
			return
		}
		handler = http.StripPrefix(prefix, relay)
	}

	server = &http.Server{
		Addr:              conf.Relay.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(log.Fields{
		"listen": conf.Relay.Listen,
		"prefix": conf.Relay.Prefix,
	}).Debug("Parsed relay configuration")

	return
}
