package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/headtracker/internal/app"
	"github.com/relabs-tech/headtracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./headtracker_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting headtracker OLED display (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
