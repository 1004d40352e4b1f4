// Command complaintctl is a terminal front end for the complaint desk API.
//
//	complaintctl list   [-status s] [-category c] [-priority p] [-search q] [-page n] [-limit n]
//	complaintctl get    <id>
//	complaintctl submit -title t -category c -description d [-priority p] [-location l] [-attach file]...
//	complaintctl update <id> [-title t] [-category c] [-priority p] [-status s] [-description d] [-location l]
//	complaintctl delete <id>
//	complaintctl stats
//	complaintctl search -q term [filters]
//	complaintctl chat   [-start "first message"]
//	complaintctl token  <user-id>
//
// API_URL, API_TOKEN, USER_ID and CLIENT_TIMEOUT select the server and the
// caller. Add -json before the subcommand for machine-readable output.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-complaint-desk/internal/client"
	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/observability"
	"github.com/tbourn/go-complaint-desk/internal/store"
	"github.com/tbourn/go-complaint-desk/internal/sysutil"
)

// app is one CLI session: one store of each kind over one client.
type app struct {
	cfg        config.Config
	out        io.Writer
	in         io.Reader
	json       bool
	complaints *store.ComplaintStore
	chat       *store.ConversationStore
}

func main() {
	_ = godotenv.Load()

	global := flag.NewFlagSet("complaintctl", flag.ExitOnError)
	asJSON := global.Bool("json", sysutil.IsTruthy(os.Getenv("COMPLAINTCTL_JSON")), "print JSON")
	verbose := global.Bool("v", false, "log API calls to stderr")
	global.Usage = usage
	_ = global.Parse(os.Args[1:])
	if global.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	observability.SetupLogger(observability.LogOptions{Level: level, Pretty: true, Writer: os.Stderr})

	api := client.FromConfig(cfg.Client)
	logger := observability.Named("complaintctl").Level(zerolog.WarnLevel)
	a := &app{
		cfg:        cfg,
		out:        os.Stdout,
		in:         os.Stdin,
		json:       *asJSON,
		complaints: store.NewComplaintStore(api, store.WithLogger(logger), store.WithListFencing()),
		chat:       store.NewConversationStore(api, store.WithLogger(logger)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := a.run(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		fail(err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "submit":
		return a.submit(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "delete":
		return a.remove(ctx, args)
	case "stats":
		return a.stats(ctx)
	case "search":
		return a.search(ctx, args)
	case "chat":
		return a.chatLoop(ctx, args)
	case "token":
		return a.token(args)
	case "help", "-h", "--help":
		usage()
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: complaintctl [-json] [-v] <command> [flags]

commands:
  list     list your complaints
  get      show one complaint
  submit   file a new complaint
  update   change fields of a complaint
  delete   delete a complaint
  stats    show complaint counts
  search   free-text search
  chat     talk to the assistant
  token    mint a bearer token (needs JWT_SECRET)`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
