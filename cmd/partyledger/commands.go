package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/partyledger/internal/config"
	"github.com/mmynk/partyledger/internal/docstore"
	"github.com/mmynk/partyledger/internal/migrate"
	"github.com/mmynk/partyledger/internal/models"
	"github.com/mmynk/partyledger/internal/service"
	"github.com/mmynk/partyledger/pkg/logging"
)

// openService loads config, sets up logging, and wires a service over the
// SQLite-backed engine. The returned func closes the engine.
func openService(configPath string) (*service.Service, *config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level))

	engine, err := docstore.NewSQLite(cfg.Database.SQLitePath)
	if err != nil {
		return nil, nil, nil, err
	}
	svc := service.New(engine, slog.Default())
	if id := cfg.Ledger.PartyListID; id != "" {
		if err := svc.AttachPartyList(context.Background(), id); err != nil {
			engine.Close()
			return nil, nil, nil, err
		}
	}
	return svc, cfg, func() { engine.Close() }, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

// --- serveCmd ---

type serveCmd struct {
	configPath string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve Prometheus metrics for a local ledger" }
func (*serveCmd) Usage() string {
	return `serve -config <path>

Opens the document store and serves /metrics until interrupted.
`
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "partyledger.yaml", "path to the YAML config file")
}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, cfg, closeFn, err := openService(c.configPath)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// h2c allows HTTP/2 without TLS for local scrapers.
	handler := h2c.NewHandler(mux, &http2.Server{})
	slog.Info("metrics server starting", "address", cfg.Metrics.Addr)
	if err := http.ListenAndServe(cfg.Metrics.Addr, handler); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// --- partyCmd ---

type partyCmd struct {
	configPath   string
	name         string
	currency     string
	participants string
}

func (*partyCmd) Name() string     { return "party" }
func (*partyCmd) Synopsis() string { return "create a party" }
func (*partyCmd) Usage() string {
	return `party -name <name> [-currency EUR] -participants "a=Alice,b=Bob"

Creates a party and prints its document id.
`
}
func (c *partyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "partyledger.yaml", "path to the YAML config file")
	f.StringVar(&c.name, "name", "", "party display name")
	f.StringVar(&c.currency, "currency", "EUR", "ISO 4217 currency code")
	f.StringVar(&c.participants, "participants", "", "comma-separated id=name pairs")
}

func (c *partyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cfg, closeFn, err := openService(c.configPath)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	var members []models.Participant
	for _, pair := range splitPairs(c.participants) {
		id, name, _ := strings.Cut(pair, "=")
		members = append(members, models.Participant{ID: id, Name: name})
	}

	party, err := svc.CreateParty(ctx, models.PartyInput{
		Name:         c.name,
		Currency:     c.currency,
		Participants: members,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Println(party.ID)
	if cfg.Ledger.PartyListID == "" {
		// First party on this device: record the list id in the config so
		// later runs append to the same list.
		fmt.Fprintf(os.Stderr, "party list created: %s (set ledger.party_list_id)\n", svc.PartyListID())
	}
	return subcommands.ExitSuccess
}

// --- addExpenseCmd ---

type addExpenseCmd struct {
	configPath string
	partyID    string
	name       string
	paidBy     string
	shares     string
	transfer   bool
}

func (*addExpenseCmd) Name() string     { return "add-expense" }
func (*addExpenseCmd) Synopsis() string { return "add an expense to a party" }
func (*addExpenseCmd) Usage() string {
	return `add-expense -party <id> -name <name> -paid "a=1000" -shares "a=divide:1,b=divide:1"

Amounts are integer cents. Share values are "exact:<cents>" or "divide:<units>".
`
}
func (c *addExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "partyledger.yaml", "path to the YAML config file")
	f.StringVar(&c.partyID, "party", "", "party document id")
	f.StringVar(&c.name, "name", "", "expense display name")
	f.StringVar(&c.paidBy, "paid", "", "comma-separated participant=cents pairs")
	f.StringVar(&c.shares, "shares", "", "comma-separated participant=kind:value pairs")
	f.BoolVar(&c.transfer, "transfer", false, "mark as a settlement transfer")
}

func (c *addExpenseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(c.configPath)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	paidBy, err := parseAmounts(c.paidBy)
	if err != nil {
		return fail(err)
	}
	shares, err := parseShares(c.shares)
	if err != nil {
		return fail(err)
	}

	expense, err := svc.CreateExpense(ctx, c.partyID, models.ExpenseInput{
		Name:     c.name,
		PaidBy:   paidBy,
		Shares:   shares,
		Transfer: c.transfer,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Println(expense.ID)
	return subcommands.ExitSuccess
}

// --- rmExpenseCmd ---

type rmExpenseCmd struct {
	configPath string
	partyID    string
	expenseID  string
}

func (*rmExpenseCmd) Name() string     { return "rm-expense" }
func (*rmExpenseCmd) Synopsis() string { return "delete an expense" }
func (*rmExpenseCmd) Usage() string {
	return `rm-expense -party <id> -id <expense-id>
`
}
func (c *rmExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "partyledger.yaml", "path to the YAML config file")
	f.StringVar(&c.partyID, "party", "", "party document id")
	f.StringVar(&c.expenseID, "id", "", "expense identifier")
}

func (c *rmExpenseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(c.configPath)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	if err := svc.DeleteExpense(ctx, c.partyID, c.expenseID); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// --- balancesCmd ---

type balancesCmd struct {
	configPath string
	partyID    string
	settle     bool
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "print party balances" }
func (*balancesCmd) Usage() string {
	return `balances -party <id> [-settle]

Prints each participant's net balance in cents. With -settle, also prints
the settlement transactions that would clear all debts.
`
}
func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "partyledger.yaml", "path to the YAML config file")
	f.StringVar(&c.partyID, "party", "", "party document id")
	f.BoolVar(&c.settle, "settle", false, "print settlement transactions")
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(c.configPath)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	balances, err := svc.TotalBalances(ctx, c.partyID)
	if err != nil {
		return fail(err)
	}

	ids := make([]string, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := balances[id]
		fmt.Printf("%-20s %+d (owed %d, owes %d)\n", id, b.Balance, b.OwedToUser, b.UserOwes)
	}

	if c.settle {
		for _, tx := range service.SimplifyBalanceTransactions(balances) {
			fmt.Printf("%s -> %s: %d\n", tx.From, tx.To, -tx.Amount)
		}
	}
	return subcommands.ExitSuccess
}

// --- migrateCmd ---

type migrateCmd struct {
	configPath string
	docID      string
	model      string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "migrate a stored document to the current schema version" }
func (*migrateCmd) Usage() string {
	return `migrate -id <doc-id> -model party|expenseChunk|expenseChunkBalances|partyList
`
}
func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "partyledger.yaml", "path to the YAML config file")
	f.StringVar(&c.docID, "id", "", "document id")
	f.StringVar(&c.model, "model", migrate.ModelParty, "model type of the document")
}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(c.configPath)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	steps, err := svc.MigrateIfNeeded(ctx, c.docID, c.model)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("applied %d migration step(s)\n", steps)
	return subcommands.ExitSuccess
}

// --- flag parsing helpers ---

func splitPairs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAmounts(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range splitPairs(s) {
		id, amount, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid amount pair %q, want id=cents", pair)
		}
		cents, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cents in %q: %w", pair, err)
		}
		out[id] = cents
	}
	return out, nil
}

func parseShares(s string) (map[string]models.ShareInput, error) {
	out := make(map[string]models.ShareInput)
	for _, pair := range splitPairs(s) {
		id, spec, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid share pair %q, want id=kind:value", pair)
		}
		kind, value, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid share spec %q, want kind:value", spec)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid share value in %q: %w", pair, err)
		}
		out[id] = models.ShareInput{Kind: models.ShareKind(kind), Value: v}
	}
	return out, nil
}
