package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	loggedIn bool

	calls []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Sync(ctx context.Context) error { f.calls = append(f.calls, "sync"); return nil }
func (f *fakeExec) List(ctx context.Context) error { f.calls = append(f.calls, "list"); return nil }
func (f *fakeExec) Show(ctx context.Context, id string) error {
	f.calls = append(f.calls, "show "+id)
	return nil
}
func (f *fakeExec) Start(ctx context.Context, id string) error {
	f.calls = append(f.calls, "start "+id)
	return nil
}
func (f *fakeExec) Complete(ctx context.Context, id string) error {
	f.calls = append(f.calls, "complete "+id)
	return nil
}
func (f *fakeExec) Expense(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "expense "+strings.Join(args, " "))
	return nil
}
func (f *fakeExec) Photo(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "photo "+strings.Join(args, " "))
	return nil
}
func (f *fakeExec) Pending(ctx context.Context) error {
	f.calls = append(f.calls, "pending")
	return nil
}
func (f *fakeExec) Retry(ctx context.Context, id string) error {
	f.calls = append(f.calls, "retry "+id)
	return nil
}
func (f *fakeExec) Discard(ctx context.Context, id string) error {
	f.calls = append(f.calls, "discard "+id)
	return nil
}
func (f *fakeExec) Status(ctx context.Context) error {
	f.calls = append(f.calls, "status")
	return nil
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login",
		"help",
		"list",
		"show 1042",
		"start 1042",
		"expense 1042 35.50 highway toll",
		"sync",
		"pending",
		"foobar",
		"exit",
	}, "\n"))

	exec := &fakeExec{loggedIn: false}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "status" }, sc)

	wantOrder := []string{"login", "list", "show 1042", "start 1042", "expense 1042 35.50 highway toll", "sync", "pending"}
	if len(exec.calls) < len(wantOrder) {
		t.Fatalf("few calls: %+v", exec.calls)
	}
	idx := 0
	for _, c := range exec.calls {
		if idx < len(wantOrder) && c == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Fatalf("commands order mismatch: got %v, want subseq %v", exec.calls, wantOrder)
	}
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader("show\nstart\nexpense 1\nretry\nquit\n")
	exec := &fakeExec{loggedIn: true}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "s" }, sc)

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
