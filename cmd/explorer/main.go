package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kennedymwaniki/resource-explorer/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/explorer/config.toml)")
	query := flag.String("q", "", "initial query, e.g. \"status=alive&page=2\"")
	storage := flag.String("storage", "", "storage backend override: memory, sqlite or redis")
	envFile := flag.String("env", "", "dotenv file to load (optional, defaults to ./.env)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:   *configPath,
		EnvFile:      *envFile,
		InitialQuery: *query,
		Storage:      *storage,
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "explorer: %v\n", err)
		return 1
	}
	return 0
}
