package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"IdeaInbox/internal/bot"
	"IdeaInbox/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local overrides; absence is fine
	_ = godotenv.Load()

	var (
		configPath string
		userID     string
		gatewayURL string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to TOML config file")
	flag.StringVar(&userID, "user-id", "", "Authorized user identity (overrides config)")
	flag.StringVar(&gatewayURL, "gateway", "", "Chat gateway websocket URL (overrides config)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if userID != "" {
		cfg.AuthorizedUserID = userID
	}
	if cfg.AuthorizedUserID == "" {
		cfg.AuthorizedUserID = os.Getenv("IDEAINBOX_USER_ID")
	}
	if gatewayURL != "" {
		cfg.GatewayURL = gatewayURL
	}
	cfg.Debug = debug

	if cfg.AuthorizedUserID == "" {
		fmt.Fprintln(os.Stderr, "No authorized user configured (set authorized_user_id, -user-id or IDEAINBOX_USER_ID)")
		os.Exit(1)
	}

	b, err := bot.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize bot: %v\n", err)
		os.Exit(1)
	}

	if cfg.GatewayURL != "" {
		err = b.RunGateway(context.Background())
	} else {
		err = b.Run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
