// courtside: basketball highlight analysis service.
// Accepts video uploads over HTTP and runs the tracking pipeline over
// per-session WebSocket connections.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/goplai/courtside/internal/config"
	"github.com/goplai/courtside/internal/log"
	"github.com/goplai/courtside/pkg/session"
	"github.com/goplai/courtside/pkg/web"
)

var (
	port        = flag.String("port", "", "HTTP server port (overrides COURTSIDE_PORT)")
	dataDir     = flag.String("data-dir", "", "data directory (overrides COURTSIDE_DATA_DIR)")
	playerModel = flag.String("player-model", "", "player detection model path")
	ballModel   = flag.String("ball-model", "", "ball detection model path")
)

func main() {
	flag.Parse()
	log.Init(config.LogLevel())

	cfg := web.DefaultServerConfig()
	if *port != "" {
		cfg.Port = *port
	}
	if *playerModel != "" {
		cfg.PlayerModelPath = *playerModel
	}
	if *ballModel != "" {
		cfg.BallModelPath = *ballModel
	}

	dir := config.DataDir()
	if *dataDir != "" {
		dir = *dataDir
	}

	store, err := session.OpenStore(dir)
	if err != nil {
		log.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	server := web.NewServer(cfg, store)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Warn("shutdown error", "error", err)
		}
	}()

	if err := server.Listen(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
