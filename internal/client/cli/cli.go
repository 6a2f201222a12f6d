// Package cli implements the commands of the operator CLI.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/ordokr/LMS-sub004/internal/client/api"
	"github.com/ordokr/LMS-sub004/internal/client/iocli"
	"github.com/ordokr/LMS-sub004/internal/client/storage"
)

// ErrUsage неверные аргументы команды; usage уже напечатан
var ErrUsage = errors.New("invalid usage")

// Cli команды оператора
type Cli struct {
	io        iocli.IO
	apiClient *api.Client
	sessions  storage.SessionStorage
	now       func() time.Time
	serverURL string
}

// New создает CLI. serverURL - адрес, с которым работает apiClient.
func New(io iocli.IO, apiClient *api.Client, sessions storage.SessionStorage, serverURL string) *Cli {
	return &Cli{
		io:        io,
		apiClient: apiClient,
		sessions:  sessions,
		serverURL: serverURL,
		now:       time.Now,
	}
}

type command struct {
	run  func(ctx context.Context, args []string) error
	auth bool
}

func (c *Cli) commands() map[string]command {
	return map[string]command{
		"login":         {run: c.runLogin},
		"logout":        {run: c.runLogout},
		"status":        {run: c.runStatus},
		"hash-password": {run: c.runHashPassword},
		"sync":          {run: c.runSync, auth: true},
		"entities":      {run: c.runEntities, auth: true},
		"entity":        {run: c.runEntity, auth: true},
		"detect":        {run: c.runDetect, auth: true},
		"event":         {run: c.runEvent, auth: true},
		"resolve":       {run: c.runResolve, auth: true},
		"transfer":      {run: c.runTransfer, auth: true},
		"history":       {run: c.runHistory, auth: true},
		"map":           {run: c.runMap, auth: true},
		"mappings":      {run: c.runMappings, auth: true},
		"enqueue":       {run: c.runEnqueue, auth: true},
		"queue":         {run: c.runQueue, auth: true},
		"retry":         {run: c.runRetry, auth: true},
		"drain":         {run: c.runDrain, auth: true},
	}
}

// Run выполняет команду args[0] с аргументами args[1:]
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return ErrUsage
	}

	cmd, ok := c.commands()[args[0]]
	if !ok {
		c.io.Printf("Unknown command: %s\n\n", args[0])
		c.PrintUsage()
		return ErrUsage
	}

	if cmd.auth {
		if err := c.authorize(ctx); err != nil {
			return err
		}
	}

	err := cmd.run(ctx, args[1:])
	if errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("%w. Please run 'lmssync login' again", err)
	}
	return err
}

// authorize загружает сохраненную сессию и передает токен API клиенту
func (c *Cli) authorize(ctx context.Context) error {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return fmt.Errorf("not authenticated. Please run 'lmssync login' first")
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(c.now()) {
		return fmt.Errorf("session expired at %s. Please run 'lmssync login' again",
			session.ExpiresAt.Format(time.RFC3339))
	}
	if session.ServerURL != c.serverURL {
		return fmt.Errorf("session belongs to %s, not %s. Please run 'lmssync login' again",
			session.ServerURL, c.serverURL)
	}

	c.apiClient.SetToken(session.AccessToken)
	return nil
}

// flags создает набор флагов подкоманды; ошибки разбора печатаются в вывод CLI
func (c *Cli) flags(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.io)
	fs.Usage = func() {
		c.io.Printf("Usage: lmssync %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse разбирает флаги, которые могут идти и после позиционных аргументов,
// и проверяет число позиционных аргументов
func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, ErrUsage
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		pos = append(pos, args[0])
		args = args[1:]
	}

	if len(pos) != positional {
		fs.Usage()
		return nil, ErrUsage
	}
	return pos, nil
}

// PrintUsage печатает справку
func (c *Cli) PrintUsage() {
	c.io.Println("LMS Sync operator CLI")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  lmssync [OPTIONS] COMMAND [ARGS]")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version                    Show version information")
	c.io.Println("  --server URL                 Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH                    Path to local session database (default: lmssync-cli.db)")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  login [-u NAME]                       Login to server")
	c.io.Println("  logout                                Delete local session")
	c.io.Println("  status                                Show session, server and sync status")
	c.io.Println("  hash-password                         Print argon2id hash for the server config")
	c.io.Println("  sync                                  Run full sync and print the summary")
	c.io.Println("  entities [-type T] [-status S]        List entity sync states")
	c.io.Println("  entity <type> <id>                    Show entity state and version vectors")
	c.io.Println("  detect <type> <id>                    Check the entity for a conflict")
	c.io.Println("  event <type> <id> -source SYS         Record an external change")
	c.io.Println("  resolve <type> <id> <strategy>        Resolve conflict (prefer_course, prefer_forum, merge)")
	c.io.Println("  transfer <type> <id> [-direction D]   Copy content between platforms now")
	c.io.Println("  history <type> <id>                   Show sync transactions of the entity")
	c.io.Println("  map <type> <id> -course ID -forum ID  Set remote identifiers")
	c.io.Println("  mappings <type>                       List remote identifiers")
	c.io.Println("  enqueue <type> <id> [-direction D]    Queue a transfer for retry")
	c.io.Println("  queue [-status S] | queue stats       Show the retry queue")
	c.io.Println("  retry <queue-id>                      Re-arm a failed queue item")
	c.io.Println("  drain                                 Process one batch of the retry queue")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  lmssync login")
	c.io.Println("  lmssync entities -status conflict")
	c.io.Println("  lmssync resolve topic 42 merge")
	c.io.Println("  lmssync --server https://sync.example.com sync")
}
