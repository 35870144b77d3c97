package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gdroom/internal/core/domain"
	signalinfra "gdroom/internal/infrastructure/signal"
	webrtcinfra "gdroom/internal/infrastructure/webrtc"
	"gdroom/pkg/config"
	"gdroom/pkg/logger"
	"gdroom/pkg/utils"
)

// Test client: joins a room through the websocket relay and simulates a
// participant that talks part of the time.
func main() {
	var (
		hostURL     = flag.String("host", "ws://localhost:8080/ws", "host relay websocket endpoint")
		roomCode    = flag.String("room", "", "room code to join (required)")
		name        = flag.String("name", "participant", "display name")
		talkPortion = flag.Float64("talk", 0.4, "fraction of time spent talking, 0 to 1")
		logLevel    = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	zapLogger := logger.New(*logLevel, "console")
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if *roomCode == "" {
		log.Fatal("missing required -room flag")
	}

	room := domain.RoomCode(*roomCode)
	id := domain.ParticipantID(utils.GenerateParticipantID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Interrupted, leaving room")
		cancel()
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	channel, err := signalinfra.DialRelay(dialCtx, *hostURL, room, string(id), log)
	dialCancel()
	if err != nil {
		log.Fatalw("failed to reach relay", "error", err)
	}
	defer channel.Close()

	cfg := config.DefaultConfig()
	engine, err := webrtcinfra.NewEngine(cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize media engine", "error", err)
	}

	session := webrtcinfra.NewParticipantSession(webrtcinfra.ParticipantOptions{
		Room:           room,
		ID:             id,
		Name:           *name,
		Channel:        channel,
		Source:         webrtcinfra.NewSyntheticLevelSource(*talkPortion, 220, time.Now().UnixNano()),
		SampleInterval: cfg.Session.SampleInterval,
	}, engine, log)

	log.Infow("joining room", "room", room, "participant_id", id, "name", *name)
	if err := session.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalw("session failed", "error", err)
	}
	log.Info("session finished")
}
