package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/hangouts/internal/config"
	"github.com/matheus3301/hangouts/internal/daemon"
	"github.com/matheus3301/hangouts/internal/profile"
	"go.uber.org/fx"
)

func main() {
	userFlag := flag.String("user", "", "local user name (overrides config default_user)")
	serverFlag := flag.String("server", "", "hangouts socket URL (overrides config server_url)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: config: %v\n", err)
		os.Exit(1)
	}
	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}

	user, err := profile.Resolve(*userFlag, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{User: user, Config: cfg}),
	)

	app.Run()
}
