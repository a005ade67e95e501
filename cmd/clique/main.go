// cmd/clique/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/app"
	"github.com/jason-s-yu/clique/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return 0
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "clique: unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}

	flagSet := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	if cmd.flags != nil {
		cmd.flags(flagSet)
	}
	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "clique %s: %v\n", cmd.name, err)
		return 2
	}
	if n := flagSet.NArg(); n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		fmt.Fprintf(os.Stderr, "usage: clique %s %s\n", cmd.name, cmd.usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clique: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Deps{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clique: %v\n", err)
		return 1
	}
	defer a.Close()

	if !cmd.anonymous {
		a.Start(ctx)
		if !a.Session.IsLoggedIn() {
			fmt.Fprintln(os.Stderr, errorStyle.Render(api.Message(api.ErrUnauthorized)))
			return 1
		}
	}

	if err := cmd.run(ctx, a, flagSet.Args()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(api.Message(err)))
		a.Logger.WithError(err).Debugf("%s failed", cmd.name)
		return 1
	}
	return 0
}
