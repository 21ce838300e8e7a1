package cli

import (
	"fmt"
	"io"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/services"

	"github.com/charmbracelet/lipgloss"
)

const (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"
)

var (
	green = lipgloss.AdaptiveColor{Light: "#00AF5F", Dark: "#00D787"}
	red   = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F87"}
	blue  = lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"}
	grey  = lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"}
)

// Printer writes styled ledger output. Styles come from a renderer bound to
// the writer, so non-terminal output stays plain.
type Printer struct {
	w io.Writer

	income  lipgloss.Style
	expense lipgloss.Style
	info    lipgloss.Style
	muted   lipgloss.Style
	title   lipgloss.Style
	warning lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		income:  r.NewStyle().Foreground(green),
		expense: r.NewStyle().Foreground(red),
		info:    r.NewStyle().Foreground(blue),
		muted:   r.NewStyle().Foreground(grey),
		title:   r.NewStyle().Bold(true),
		warning: r.NewStyle().Foreground(red).Bold(true),
	}
}

func (p *Printer) Success(message string) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", p.income.Render(successSymbol), message)
}

func (p *Printer) Error(message string) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", p.expense.Render(errorSymbol), p.expense.Render(message))
}

func (p *Printer) Infof(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", p.info.Render(infoSymbol), fmt.Sprintf(format, args...))
}

// View prints the summary, budget usage and per-category expenses.
func (p *Printer) View(v services.LedgerView) {
	fmt.Fprintln(p.w, p.title.Render(v.Label))
	fmt.Fprintf(p.w, "  Income   %s\n", p.income.Render(core.FormatAmount(v.Summary.Income)))
	fmt.Fprintf(p.w, "  Expense  %s\n", p.expense.Render(core.FormatAmount(v.Summary.Expense)))
	fmt.Fprintf(p.w, "  Balance  %s\n", p.signed(v.Summary.Balance.IsNegative(), core.FormatAmount(v.Summary.Balance)))
	fmt.Fprintf(p.w, "  Budget   %s\n", p.budgetLine(v.Allowance))

	if len(v.ByCategory) > 0 {
		fmt.Fprintln(p.w, p.muted.Render("  By category"))
		for _, c := range v.ByCategory {
			fmt.Fprintf(p.w, "    %-16s %s\n", c.Name, core.FormatAmount(c.Amount))
		}
	}
	if v.Truncated {
		fmt.Fprintln(p.w, p.muted.Render("  (only the most recent transactions are included)"))
	}
}

func (p *Printer) budgetLine(a core.Allowance) string {
	if a.State == core.BudgetUnset {
		return p.muted.Render("unset")
	}
	usage := fmt.Sprintf("%d%% of %s", a.Percent(), core.FormatAmount(a.Budget))
	remaining := fmt.Sprintf("remaining %s", core.FormatAmount(a.Remaining))
	if a.Exhausted {
		return p.warning.Render(usage) + "  " + p.signed(a.OverBudget, remaining)
	}
	return usage + "  " + p.signed(a.OverBudget, remaining)
}

// Transactions prints one line per transaction in the given order.
func (p *Printer) Transactions(txs []core.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("no transactions"))
		return
	}
	for _, tx := range txs {
		amount := core.FormatAmount(tx.Amount)
		if tx.Kind == core.Expense {
			amount = p.expense.Render("-" + amount)
		} else {
			amount = p.income.Render("+" + amount)
		}
		line := fmt.Sprintf("%s  %-16s %12s", tx.Date, tx.Category, amount)
		if tx.Note != "" {
			line += "  " + p.muted.Render(tx.Note)
		}
		fmt.Fprintf(p.w, "%s  %s\n", line, p.muted.Render(tx.ID))
	}
}

// Categories prints the selectable labels, noting when they are the defaults.
func (p *Printer) Categories(names []string, defaults bool) {
	fmt.Fprintln(p.w, strings.Join(names, "\n"))
	if defaults {
		fmt.Fprintln(p.w, p.muted.Render("(default categories; add one to replace them)"))
	}
}

func (p *Printer) signed(negative bool, s string) string {
	if negative {
		return p.expense.Render(s)
	}
	return s
}
