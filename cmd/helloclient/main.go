package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/taller-web/hello-client/internal/app"
	"github.com/taller-web/hello-client/internal/config"
	"github.com/taller-web/hello-client/internal/logger"
)

const usage = `usage: helloclient [flags] [command]

commands:
  get [name]     send GET /hello?name=... and print the response
  post [name]    send POST /hellopost?name=... and print the response
  history [n]    print the n most recent exchanges
  interactive    read commands from stdin (default)

flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "helloclient failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := config.Flags("helloclient")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("helloclient starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := app.NewSession(ctx, cfg, log, os.Stdout)
	if err != nil {
		logger.ErrorObj("failed to initialize session", "error", err)
		return err
	}
	session.ServeMetrics()

	runErr := dispatch(ctx, session, fs.Args())
	if err := session.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close session: %w", err))
	}
	return runErr
}

func dispatch(ctx context.Context, session *app.Session, args []string) error {
	cmd := "interactive"
	if len(args) > 0 {
		cmd = args[0]
	}
	var name *string
	if len(args) > 1 {
		name = &args[1]
	}

	switch cmd {
	case "get":
		_, err := session.Get(ctx, name).Wait(ctx)
		return err
	case "post":
		_, err := session.Post(ctx, name).Wait(ctx)
		return err
	case "history":
		limit := 10
		if name != nil {
			n, err := strconv.Atoi(*name)
			if err != nil {
				return fmt.Errorf("invalid history limit %q", *name)
			}
			limit = n
		}
		return session.PrintHistory(os.Stdout, limit)
	case "interactive":
		return session.RunInteractive(ctx, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
