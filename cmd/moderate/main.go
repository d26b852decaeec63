// Command moderate is a lightweight operator CLI for the moderation queue.
// It talks to the same backends as the server, so a decision made here is
// indistinguishable from one made through the admin API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/openshelf/openshelf/pkg/openshelf"
	"github.com/openshelf/openshelf/pkg/openshelf/config"
)

const usage = `OpenShelf Moderation CLI

Works the moderation queue directly against the configured repository and
blob store, without going through the HTTP API.

USAGE:
  moderate <command> [options]

COMMANDS:
  pending   List books waiting for review
  show      Show one book record
  approve   Approve a pending book
  reject    Reject a pending book (reason required)

ENVIRONMENT VARIABLES:
  REPOSITORY_TYPE   memory, dynamo or postgres (default: memory)
  DATABASE_URL      PostgreSQL connection string (postgres only)
  DYNAMO_TABLE      DynamoDB table name (dynamo only)
  S3_BUCKET         Blob store bucket

  Configuration can be loaded from a .env file in the current directory.

EXAMPLES:
  moderate pending
  moderate pending --limit=10 --offset=0 --json
  moderate show 550e8400-e29b-41d4-a716-446655440000
  moderate approve 550e8400-e29b-41d4-a716-446655440000 --reviewer=ops-jane
  moderate reject 550e8400-e29b-41d4-a716-446655440000 --reviewer=ops-jane --reason="copyright claim"

OPTIONS:
  --limit=<n>        Maximum results for pending (default: 20)
  --offset=<n>       Pagination offset for pending (default: 0)
  --reviewer=<id>    Reviewer id stamped on the decision (default: $USER)
  --reason=<text>    Rejection reason (reject only, required)
  --json             Output as JSON
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := cfg.BuildService(context.Background(), logger)
	if err != nil {
		fatal("failed to build service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command := os.Args[1]
	args := parseArgs(os.Args[2:])

	switch command {
	case "pending":
		runPending(ctx, svc, args)
	case "show":
		runShow(ctx, svc, args)
	case "approve":
		runDecision(ctx, svc, args, true)
	case "reject":
		runDecision(ctx, svc, args, false)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", command, usage)
		os.Exit(2)
	}
}

// cliArgs holds positional arguments and --key=value flags.
type cliArgs struct {
	positional []string
	flags      map[string]string
}

func parseArgs(raw []string) cliArgs {
	args := cliArgs{flags: make(map[string]string)}
	for _, a := range raw {
		if strings.HasPrefix(a, "--") {
			key, value, found := strings.Cut(strings.TrimPrefix(a, "--"), "=")
			if !found {
				value = "true"
			}
			args.flags[key] = value
		} else {
			args.positional = append(args.positional, a)
		}
	}
	return args
}

func (a cliArgs) intFlag(name string, fallback int) int {
	if v, ok := a.flags[name]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fatal("invalid --%s value: %s", name, v)
	}
	return fallback
}

func (a cliArgs) bookID() uuid.UUID {
	if len(a.positional) == 0 {
		fatal("book id argument is required")
	}
	id, err := uuid.Parse(a.positional[0])
	if err != nil {
		fatal("malformed book id %q", a.positional[0])
	}
	return id
}

func (a cliArgs) reviewer() openshelf.Actor {
	reviewer := a.flags["reviewer"]
	if reviewer == "" {
		reviewer = os.Getenv("USER")
	}
	if reviewer == "" {
		fatal("--reviewer is required when $USER is not set")
	}
	return openshelf.Actor{ID: reviewer, Moderator: true}
}

func runPending(ctx context.Context, svc openshelf.Service, args cliArgs) {
	books, err := svc.ListPending(ctx, openshelf.ListRequest{
		Limit:  args.intFlag("limit", 20),
		Offset: args.intFlag("offset", 0),
	})
	if err != nil {
		fatal("failed to list pending books: %v", err)
	}

	if args.flags["json"] == "true" {
		printJSON(books)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tOWNER\tTYPE\tSUBMITTED")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Title, b.Author, b.OwnerID, b.DetectedContentType,
			b.UpdatedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("\n%d pending\n", len(books))
}

func runShow(ctx context.Context, svc openshelf.Service, args cliArgs) {
	book, err := svc.GetBook(ctx, args.bookID())
	if err != nil {
		fatal("failed to get book: %v", err)
	}
	printJSON(book)
}

func runDecision(ctx context.Context, svc openshelf.Service, args cliArgs, approve bool) {
	req := openshelf.ModerationRequest{
		BookID:   args.bookID(),
		Reviewer: args.reviewer(),
		Reason:   args.flags["reason"],
	}

	var book *openshelf.Book
	var err error
	if approve {
		book, err = svc.Approve(ctx, req)
	} else {
		book, err = svc.Reject(ctx, req)
	}
	if err != nil {
		fatal("moderation failed: %v", err)
	}

	fmt.Printf("%s -> %s (key %s)\n", book.ID, book.Status, book.StorageKey)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("failed to encode output: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
