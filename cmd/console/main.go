// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/headtracker/internal/app"
	"github.com/relabs-tech/headtracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./headtracker_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "run the tracker in-process on the mock IMU instead of reading MQTT")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	run := app.RunConsoleMQTT
	if *mock {
		log.Println("starting headtracker console (mock IMU, no broker)")
		run = app.RunMockConsole
	} else {
		log.Println("starting headtracker console (MQTT subscriber)")
	}

	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
