// Package main runs the realtime update client as a standalone daemon,
// useful for soak-testing the connection against a live server.
package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/config"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/logger"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/realtime"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

var (
	envFile  = flag.String("env", ".env", "Path to .env file")
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFmt   = flag.String("log-format", "text", "Log format (text, json)")
	channels = flag.String("channels", "", "Comma-separated channels to subscribe")
	version  = "dev"
)

func main() {
	flag.Parse()

	// Initialize logger
	logger.Init(*logLevel, *logFmt)

	logger.Info("Realtime client starting", "version", version)

	// Load .env file if it exists
	if _, err := os.Stat(*envFile); err == nil {
		logger.Info("Loading environment", "file", *envFile)

		if err := godotenv.Load(*envFile); err != nil {
			logger.Error("Failed to load .env file", "error", err)
			os.Exit(1)
		}
	}

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	logger.Info("Configuration loaded", "server_url", cfg.ServerURL)

	// Create the client
	client, err := realtime.New(cfg)
	if err != nil {
		logger.Error("Failed to create realtime client", "error", err)
		os.Exit(1)
	}

	// One consumer for the daemon: log every application frame.
	consumer := client.Consumer()
	defer consumer.Close()

	for _, typ := range []wire.MessageType{
		wire.TypeNotification,
		wire.TypeAlert,
		wire.TypeDataUpdate,
		wire.TypeAttendanceUpdate,
		wire.TypeGradeUpdate,
		wire.TypePaymentUpdate,
	} {
		consumer.On(typ, func(f *wire.Frame) {
			logger.Info("Frame received", "type", f.Type, "channel", f.Channel, "seq", f.Seq)
		})
	}

	consumer.On(wire.TypeUserOnline, func(f *wire.Frame) {
		logger.Info("User online", "user_id", f.UserID(), "online", client.Presence().Len())
	})
	consumer.On(wire.TypeUserOffline, func(f *wire.Frame) {
		logger.Info("User offline", "user_id", f.UserID(), "online", client.Presence().Len())
	})

	consumer.OnConnect(func() {
		logger.Info("Connected", "channels", client.Channels())
	})
	consumer.OnDisconnect(func() {
		logger.Warn("Disconnected")
	})

	for _, ch := range strings.Split(*channels, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			consumer.Subscribe(ch)
		}
	}

	// Connect (reconnection is automatic from here on)
	if err := client.Connect(); err != nil {
		logger.Warn("Initial connect did not complete", "error", err)
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Realtime client is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	logger.Info("Received signal, shutting down", "signal", sig.String())

	if err := client.Disconnect(); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Realtime client shut down successfully")
}
