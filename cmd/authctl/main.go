package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/authctl"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

func main() {
	os.Exit(run())
}

// run reads configuration from the environment only; the arguments are the
// command.
func run() int {
	ctx := context.Background()

	cfg, err := config.Load(nil, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	if cfg.Storage == config.StorageMemory {
		fmt.Fprintln(os.Stderr, "authctl needs a persistent store; set STORAGE=postgres")
		return 1
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	st, err := server.OpenStorage(ctx, cfg, timex.SystemClock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage error: %v\n", err)
		return 1
	}
	defer st.Close()

	engine := server.NewEngine(cfg, st, timex.SystemClock, logger)
	app := authctl.NewApp(engine.Users, os.Stdin, os.Stdout)

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, authctl.ErrUsage) {
			app.Usage()
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}
