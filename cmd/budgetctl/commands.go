package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"budgetbook/internal/auth"
	"budgetbook/internal/cli"
	"budgetbook/internal/config"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
	gsheet "budgetbook/internal/sheets/google"
	"budgetbook/internal/store"
	"budgetbook/internal/worker"

	"github.com/alecthomas/kong"
)

// Globals defines flags available to every command.
type Globals struct {
	User string `help:"Ledger owner id." env:"BUDGETBOOK_USER" short:"u"`
}

type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information."`

	Summary  SummaryCmd  `cmd:"" help:"Show totals and budget usage for a year/month."`
	Tx       TxCmd       `cmd:"" help:"Add, remove or list transactions."`
	Category CategoryCmd `cmd:"" help:"Add or list categories."`
	Budget   BudgetCmd   `cmd:"" help:"Set budgets."`
	Token    TokenCmd    `cmd:"" help:"Issue a bearer token for the HTTP API."`
	Sheets   SheetsCmd   `cmd:"" help:"Manage the Google Sheets mirror."`
}

// session carries the opened backend into commands.
type session struct {
	cfg    *config.Config
	store  store.Ledger
	events services.EventPublisher
	logger *log.Logger
	out    io.Writer
	now    func() time.Time
}

func (s *session) ledger(g *Globals) (*services.LedgerService, error) {
	if g.User == "" {
		return nil, errors.New("no user: pass --user or set BUDGETBOOK_USER")
	}
	return services.NewLedgerService(s.store, auth.Static(g.User), services.Options{
		TransactionLimit: s.cfg.TransactionLimit,
		Events:           s.events,
		Logger:           s.logger,
		Now:              s.now,
	}), nil
}

func (s *session) printer() *cli.Printer {
	return cli.NewPrinter(s.out)
}

// filter reads the year/month selectors; an empty year means the current one.
func (s *session) filter(year, month string) (core.Filter, error) {
	if year == "" {
		year = strconv.Itoa(s.now().Year())
	}
	return core.ParseFilter(year, month)
}

// mutated reports a committed change. A failed reload after commit is
// shown as a warning since the change itself was stored.
func (s *session) mutated(message string, err error) error {
	var reloadErr *services.ReloadError
	if errors.As(err, &reloadErr) {
		s.printer().Success(message)
		s.printer().Error("saved, but reloading the ledger failed: " + reloadErr.Err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	s.printer().Success(message)
	return nil
}

type SummaryCmd struct {
	Year  string `help:"Year, or 'all'. Defaults to the current year." short:"y"`
	Month string `help:"Month 1-12, or 'all'." short:"m" default:"all"`
}

func (c *SummaryCmd) Run(g *Globals, s *session) error {
	f, err := s.filter(c.Year, c.Month)
	if err != nil {
		return err
	}
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	v, err := svc.View(context.Background(), f)
	if err != nil {
		return err
	}
	s.printer().View(v)
	return nil
}

type TxCmd struct {
	Add  TxAddCmd  `cmd:"" help:"Record a transaction."`
	Rm   TxRmCmd   `cmd:"" help:"Delete a transaction by id."`
	List TxListCmd `cmd:"" help:"List transactions, newest first."`
}

type TxAddCmd struct {
	Kind     string `arg:"" enum:"income,expense" help:"income or expense."`
	Category string `arg:"" help:"Category name."`
	Amount   string `arg:"" help:"Amount, e.g. 1,234.50."`
	Date     string `help:"Date as YYYY-MM-DD." default:"${today}" short:"d"`
	Note     string `help:"Free-text note." short:"n"`
}

func (c *TxAddCmd) Run(g *Globals, s *session) error {
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	tx, err := svc.AddTransaction(context.Background(), services.TransactionInput{
		Date:     c.Date,
		Kind:     c.Kind,
		Category: c.Category,
		Amount:   c.Amount,
		Note:     c.Note,
	})
	if tx.ID == "" && err != nil {
		return err
	}
	return s.mutated(fmt.Sprintf("added %s %s %s (%s)", tx.Kind, tx.Category, core.FormatAmount(tx.Amount), tx.ID), err)
}

type TxRmCmd struct {
	ID string `arg:"" help:"Transaction id."`
}

func (c *TxRmCmd) Run(g *Globals, s *session) error {
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	err = svc.DeleteTransaction(context.Background(), c.ID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("no transaction %s", c.ID)
	}
	return s.mutated("deleted "+c.ID, err)
}

type TxListCmd struct {
	Year  string `help:"Year, or 'all'. Defaults to the current year." short:"y"`
	Month string `help:"Month 1-12, or 'all'." short:"m" default:"all"`
}

func (c *TxListCmd) Run(g *Globals, s *session) error {
	f, err := s.filter(c.Year, c.Month)
	if err != nil {
		return err
	}
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	v, err := svc.View(context.Background(), f)
	if err != nil {
		return err
	}
	s.printer().Transactions(v.Transactions)
	return nil
}

type CategoryCmd struct {
	Add  CategoryAddCmd  `cmd:"" help:"Create a category."`
	List CategoryListCmd `cmd:"" help:"List selectable categories."`
}

type CategoryAddCmd struct {
	Name string `arg:"" help:"Category name."`
}

func (c *CategoryAddCmd) Run(g *Globals, s *session) error {
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	cat, err := svc.AddCategory(context.Background(), c.Name)
	if cat.ID == "" && err != nil {
		return err
	}
	return s.mutated("added category "+cat.Name, err)
}

type CategoryListCmd struct{}

func (c *CategoryListCmd) Run(g *Globals, s *session) error {
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	snap, err := svc.Current(context.Background())
	if err != nil {
		return err
	}
	s.printer().Categories(snap.CategoryNames, snap.UsingDefaultCategories)
	return nil
}

type BudgetCmd struct {
	Set BudgetSetCmd `cmd:"" help:"Create or replace the budget for a year/month scope."`
}

type BudgetSetCmd struct {
	Amount string `arg:"" help:"Budget amount."`
	Year   string `help:"Year, or 'all' for every year." short:"y" default:"all"`
	Month  string `help:"Month 1-12, or 'all' for every month." short:"m" default:"all"`
}

func (c *BudgetSetCmd) Run(g *Globals, s *session) error {
	f, err := core.ParseFilter(c.Year, c.Month)
	if err != nil {
		return err
	}
	svc, err := s.ledger(g)
	if err != nil {
		return err
	}
	b, err := svc.SaveBudget(context.Background(), services.BudgetInput{
		Year:   f.Year,
		Month:  f.Month,
		Amount: c.Amount,
	})
	if b.ID == "" && err != nil {
		return err
	}
	return s.mutated(fmt.Sprintf("budget %s set to %s", f.Label(), core.FormatAmount(b.Amount)), err)
}

type TokenCmd struct {
	TTL time.Duration `help:"Token lifetime." default:"24h"`
}

func (c *TokenCmd) Run(g *Globals, s *session) error {
	if g.User == "" {
		return errors.New("no user: pass --user or set BUDGETBOOK_USER")
	}
	token, err := auth.IssueToken(s.cfg.JWTSecret, g.User, c.TTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(s.out, token)
	return nil
}

type SheetsCmd struct {
	Init      SheetsInitCmd      `cmd:"" help:"Write the header row of the mirror sheet."`
	Reconcile SheetsReconcileCmd `cmd:"" help:"Append the user's transactions missing from the mirror."`
}

func (s *session) sheetsClient(ctx context.Context) (*gsheet.Client, error) {
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   s.cfg.GoogleSpreadsheetID,
		SheetName:       s.cfg.GoogleSheetName,
		CredentialsJSON: s.cfg.GoogleServiceAccountJSON,
		CredentialsFile: s.cfg.GoogleServiceAccountFile,
	})
}

type SheetsInitCmd struct{}

func (c *SheetsInitCmd) Run(s *session) error {
	ctx := context.Background()
	client, err := s.sheetsClient(ctx)
	if err != nil {
		return err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return err
	}
	s.printer().Success("mirror sheet ready")
	return nil
}

type SheetsReconcileCmd struct{}

func (c *SheetsReconcileCmd) Run(g *Globals, s *session) error {
	if g.User == "" {
		return errors.New("no user: pass --user or set BUDGETBOOK_USER")
	}
	ctx := context.Background()
	client, err := s.sheetsClient(ctx)
	if err != nil {
		return err
	}
	added, err := worker.NewSheetsMirror(s.store, client, s.cfg.TransactionLimit, s.logger).Reconcile(ctx, g.User)
	if err != nil {
		return err
	}
	s.printer().Infof("%d rows appended", added)
	return nil
}
