package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tidegate/cryptoharvest/internal/config"
	"github.com/tidegate/cryptoharvest/internal/initializer"
)

func main() {
	cfgPath := flag.String("config", "./config.json", "path to JSON config file")
	flag.Parse()

	// A .env file lets deployments point GOOGLE_APPLICATION_CREDENTIALS and
	// friends at the provisioned service account without editing the config.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	mainCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initializer.Start(mainCtx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
