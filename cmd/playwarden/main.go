// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package main is the entry point for the Playwarden device agent.
//
// Playwarden keeps a media player running a configured playlist on an
// unattended screen and reports its health to a remote control service.
//
// # Application Architecture
//
// The run command initializes components in the following order:
//
//  1. Configuration: defaults, config file and PLAYWARDEN_* environment (Koanf v2)
//  2. Device identity: hostname, primary interface IP and MAC (gopsutil)
//  3. State store: durable JSON file fronted by an optional BadgerDB cache
//  4. Playback supervisor: player process, watchdog and restarts
//  5. Snapshot probe and purger
//  6. Connectivity supervisor: control and telemetry websocket channels
//  7. Local HTTP API (optional)
//
// Long-running components are services in a suture supervisor tree.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the tree. The player is stopped, the API is
// shut down gracefully and the state cache is closed.
//
// # Example Usage
//
//	playwarden run --config /etc/playwarden/config.yaml
//	playwarden state show
//	playwarden playlist activate lobby
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
