package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Sync(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Expense(ctx context.Context, args []string) error
	Photo(ctx context.Context, args []string) error
	Pending(ctx context.Context) error
	Retry(ctx context.Context, id string) error
	Discard(ctx context.Context, id string) error
	Status(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the technician console.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           — show available commands
//	  - login          — authenticate and store the token locally
//	  - exit | quit    — leave the program
//
//	Logged in:
//	  - help                        — show available commands
//	  - list                        — list cached work orders
//	  - show <id>                   — show one record
//	  - start <id>                  — mark a work order in progress
//	  - complete <id>               — mark a work order completed
//	  - expense <id> <amount> <desc> — record an expense
//	  - photo <id> <file>           — attach a photo from disk
//	  - pending                     — show queued and rejected changes
//	  - retry <mutation>            — requeue a rejected change
//	  - discard <mutation>          — drop a rejected change
//	  - sync                        — synchronize now
//	  - status                      — connectivity and queue counters
//	  - exit | quit                 — leave the program
//
// Any errors returned by command handlers are reported inline and the loop
// continues; nothing here is fatal to the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("tech %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (l)ist, show, start, complete, expense, photo, pending, retry, discard, sync, status, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "l", "list":
			err = a.List(ctx)

		case "show":
			if len(args) == 0 {
				printlnFn("Usage: show <id>")
				continue
			}
			err = a.Show(ctx, args[0])

		case "start":
			if len(args) == 0 {
				printlnFn("Usage: start <id>")
				continue
			}
			err = a.Start(ctx, args[0])

		case "complete":
			if len(args) == 0 {
				printlnFn("Usage: complete <id>")
				continue
			}
			err = a.Complete(ctx, args[0])

		case "expense":
			if len(args) < 3 {
				printlnFn("Usage: expense <id> <amount> <description>")
				continue
			}
			err = a.Expense(ctx, args)

		case "photo":
			if len(args) < 2 {
				printlnFn("Usage: photo <id> <file>")
				continue
			}
			err = a.Photo(ctx, args)

		case "pending":
			err = a.Pending(ctx)

		case "retry":
			if len(args) == 0 {
				printlnFn("Usage: retry <mutation>")
				continue
			}
			err = a.Retry(ctx, args[0])

		case "discard":
			if len(args) == 0 {
				printlnFn("Usage: discard <mutation>")
				continue
			}
			err = a.Discard(ctx, args[0])

		case "sync":
			err = a.Sync(ctx)

		case "status":
			err = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
