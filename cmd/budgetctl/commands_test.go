package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"budgetbook/internal/auth"
	"budgetbook/internal/config"
	"budgetbook/internal/log"
	"budgetbook/internal/store/memory"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	t   *testing.T
	s   *session
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	return &harness{
		t:   t,
		out: out,
		s: &session{
			cfg:    &config.Config{TransactionLimit: 800, JWTSecret: testSecret},
			store:  memory.New(),
			logger: log.New(log.Config{Output: io.Discard}),
			out:    out,
			now:    func() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) },
		},
	}
}

// run parses args and executes the selected command, returning its output.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()
	var c CLI
	parser, err := newParser(&c, h.s,
		kong.Writers(h.out, h.out),
		kong.Exit(func(int) { h.t.Fatalf("kong exited on %v", args) }),
	)
	assert.NoError(h.t, err)
	ctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = ctx.Run()
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	assert.NoError(h.t, err, "args %v", args)
	return out
}

func TestCategoryCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("--user", "alice", "category", "list")
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "default categories")

	out = h.mustRun("--user", "alice", "category", "add", "Books")
	assert.Contains(t, out, "added category Books")

	out = h.mustRun("--user", "alice", "category", "list")
	assert.Equal(t, "Books", strings.TrimSpace(out))
}

func TestTransactionLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("-u", "alice", "tx", "add", "expense", "Food", "1,234.5", "--note", "groceries")
	assert.Contains(t, out, "added expense Food 1,234.50")

	h.mustRun("-u", "alice", "tx", "add", "income", "Salary", "3000", "--date", "2025-02-01")

	out = h.mustRun("-u", "alice", "tx", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, 2, len(lines))
	assert.Contains(t, lines[0], "2025-03-15")
	assert.Contains(t, lines[0], "groceries")
	assert.Contains(t, lines[1], "2025-02-01")

	out = h.mustRun("-u", "alice", "tx", "list", "--month", "2")
	assert.Equal(t, 1, len(strings.Split(strings.TrimSpace(out), "\n")))

	id := strings.Fields(lines[1])[len(strings.Fields(lines[1]))-1]
	out = h.mustRun("-u", "alice", "tx", "rm", id)
	assert.Contains(t, out, "deleted "+id)

	_, err := h.run("-u", "alice", "tx", "rm", id)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no transaction")
}

func TestTransactionValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("-u", "alice", "tx", "add", "expense", "Food", "-5")
	assert.Error(t, err)

	_, err = h.run("-u", "alice", "tx", "add", "expense", "Yachts", "5")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "category")

	_, err = h.run("-u", "alice", "tx", "add", "gift", "Food", "5")
	assert.Error(t, err)
}

func TestSummaryWithBudget(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("-u", "alice", "summary")
	assert.Contains(t, out, "2025 / All months")
	assert.Contains(t, out, "unset")

	h.mustRun("-u", "alice", "tx", "add", "expense", "Rent", "450")
	out = h.mustRun("-u", "alice", "budget", "set", "1000", "--year", "2025", "--month", "3")
	assert.Contains(t, out, "budget 2025 / March set to 1,000.00")

	out = h.mustRun("-u", "alice", "summary", "--month", "3")
	assert.Contains(t, out, "2025 / March")
	assert.Contains(t, out, "45% of 1,000.00")
	assert.Contains(t, out, "Rent")

	// the year view falls through to no budget
	out = h.mustRun("-u", "alice", "summary")
	assert.Contains(t, out, "unset")

	h.mustRun("-u", "alice", "budget", "set", "300")
	out = h.mustRun("-u", "alice", "summary", "--year", "all")
	assert.Contains(t, out, "All years / All months")
	assert.Contains(t, out, "100% of 300.00")
}

func TestCommandsRequireUser(t *testing.T) {
	h := newHarness(t)
	t.Setenv("BUDGETBOOK_USER", "")

	_, err := h.run("summary")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no user")
}

func TestUserFromEnvironment(t *testing.T) {
	h := newHarness(t)
	t.Setenv("BUDGETBOOK_USER", "bob")

	h.mustRun("category", "add", "Garden")
	out := h.mustRun("--user", "bob", "category", "list")
	assert.Contains(t, out, "Garden")
}

func TestTokenCommand(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("-u", "alice", "token", "--ttl", "1h")
	user, err := auth.ParseToken(testSecret, strings.TrimSpace(out))
	assert.NoError(t, err)
	assert.Equal(t, "alice", user)

	h.s.cfg.JWTSecret = ""
	_, err = h.run("-u", "alice", "token")
	assert.Error(t, err)
}

func TestSheetsCommandsNeedSpreadsheet(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("sheets", "init")
	assert.Error(t, err)
	_, err = h.run("-u", "alice", "sheets", "reconcile")
	assert.Error(t, err)
}
