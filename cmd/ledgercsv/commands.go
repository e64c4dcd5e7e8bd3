package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/google/subcommands"
)

// cliUserAgent identifies command line imports in the audit log.
const cliUserAgent = "ledgercsv-cli"

type importCmd struct {
	dryRun bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import transactions from a CSV file" }
func (*importCmd) Usage() string {
	return `import [-dry-run] <file>

  Imports a CSV file with the header Date,Name,Amount,Category,Asset,Note.
  Missing categories are created; assets must already exist (see asset-add).
  Rows already present in the store are skipped and reported.
  With -dry-run nothing is written; the command reports what would happen.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "check the file without importing it")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one file is required")
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	if c.dryRun {
		return printPreview(ctx, e.service(), f.Arg(0))
	}

	ctx = core.WithClientInfo(ctx, core.ClientInfo{UserAgent: cliUserAgent})
	result, err := e.service().ImportFile(ctx, f.Arg(0))
	if result != nil {
		fmt.Println(result.Summary())
		for _, cat := range result.CreatedCategories {
			fmt.Printf("  new category: %s\n", cat.Name)
		}
	}
	if err != nil {
		printError(os.Stderr, err)
		var dupErr *core.DuplicateCountError
		if errors.As(err, &dupErr) {
			// Everything new was imported; skipped duplicates are informational.
			return subcommands.ExitSuccess
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printPreview(ctx context.Context, svc *core.Service, path string) subcommands.ExitStatus {
	p, err := svc.PreviewFile(ctx, path)
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%s (%s): %d rows\n", p.FileName, p.Encoding, p.Summary.TotalRows)
	fmt.Printf("  would import:      %d\n", p.Summary.NewRows)
	fmt.Printf("  already imported:  %d\n", p.Summary.DuplicateRows)
	fmt.Printf("  invalid:           %d\n", p.Summary.ErrorRows)
	if p.Summary.DuplicateInFile > 0 {
		fmt.Printf("  repeated in file:  %d\n", p.Summary.DuplicateInFile)
	}
	for _, name := range p.NewCategories {
		fmt.Printf("  new category: %s\n", name)
	}
	for _, e := range p.ErrorSamples {
		fmt.Printf("  - %s\n", e.Message)
	}
	for _, d := range p.DuplicateSamples {
		fmt.Printf("  rows %v repeat %s %s %s\n", d.Rows, d.Date, d.Name, d.Amount)
	}

	if p.Summary.ErrorRows > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export all transactions as CSV" }
func (*exportCmd) Usage() string {
	return `export [-o <file>]

  Writes every stored transaction as CSV to stdout, or to the given file.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output file (default: stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	service := e.service()
	var n int
	if c.output == "" {
		n, err = service.Export(ctx, os.Stdout)
	} else {
		n, err = service.ExportFile(ctx, c.output)
	}
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.output != "" {
		fmt.Fprintf(os.Stderr, "Exported %d transactions to %s\n", n, c.output)
	}
	return subcommands.ExitSuccess
}

type assetAddCmd struct {
	name     string
	currency string
}

func (*assetAddCmd) Name() string     { return "asset-add" }
func (*assetAddCmd) Synopsis() string { return "register an asset (account) transactions can reference" }
func (*assetAddCmd) Usage() string {
	return `asset-add -name <name> -currency <code>

  Adds an asset. The currency is a 3-letter ISO 4217 code (e.g. "EUR").
`
}

func (c *assetAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "asset name as it appears in the Asset column (required)")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency code (required)")
}

func (c *assetAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" || c.currency == "" {
		fmt.Fprintln(os.Stderr, "Error: -name and -currency are required")
		return subcommands.ExitUsageError
	}
	if _, err := core.ParseCurrency(c.currency); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	existing, err := e.store.ListAssets(ctx)
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}
	for _, a := range existing {
		if core.Normalize(a.Name) == core.Normalize(c.name) {
			fmt.Fprintf(os.Stderr, "Error: asset %q already exists as %q\n", c.name, a.Name)
			return subcommands.ExitFailure
		}
	}

	asset, err := e.store.InsertAsset(ctx, c.name, c.currency)
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Added asset %s (%s) %s\n", asset.Name, asset.Currency, asset.ID)
	return subcommands.ExitSuccess
}

type assetsCmd struct{}

func (*assetsCmd) Name() string           { return "assets" }
func (*assetsCmd) Synopsis() string       { return "list registered assets" }
func (*assetsCmd) Usage() string          { return "assets\n" }
func (*assetsCmd) SetFlags(*flag.FlagSet) {}

func (c *assetsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	assets, err := e.store.ListAssets(ctx)
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCURRENCY\tID")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.Currency, a.ID)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string           { return "migrate" }
func (*migrateCmd) Synopsis() string       { return "create the database tables" }
func (*migrateCmd) Usage() string          { return "migrate\n\n  Creates missing tables. Safe to run repeatedly.\n" }
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	if err := e.store.Migrate(ctx); err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("Schema is up to date")
	return subcommands.ExitSuccess
}

type historyCmd struct {
	limit   int
	outcome string
	since   string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recorded import attempts" }
func (*historyCmd) Usage() string {
	return `history [-n count] [-outcome name] [-since YYYY-MM-DD]

  Lists import attempts from the audit log, newest first. Outcomes are
  imported, duplicates, row_errors, rejected and failed.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "maximum number of entries")
	f.StringVar(&c.outcome, "outcome", "", "only show this outcome")
	f.StringVar(&c.since, "since", "", "only show attempts on or after this date")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	opts := core.AuditLogOptions{Outcome: core.AuditOutcome(c.outcome), Limit: c.limit}
	if c.outcome != "" && !opts.Outcome.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown outcome %q\n", c.outcome)
		return subcommands.ExitUsageError
	}
	if c.since != "" {
		since, err := time.Parse(core.DateLayout, c.since)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: -since must be YYYY-MM-DD")
			return subcommands.ExitUsageError
		}
		opts.Since = since
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	entries, err := e.service().ImportHistory(ctx, opts)
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFILE\tOUTCOME\tROWS\tIMPORTED\tDUPLICATES\tERRORS\tSOURCE")
	for _, en := range entries {
		source := en.IPAddress
		if source == "" {
			source = en.UserAgent
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			en.CreatedAt.Local().Format("2006-01-02 15:04:05"), en.FileName, en.Outcome,
			en.TotalRows, en.Imported, en.Duplicates, en.RowErrors, source)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type auditPurgeCmd struct {
	days int
}

func (*auditPurgeCmd) Name() string     { return "audit-purge" }
func (*auditPurgeCmd) Synopsis() string { return "delete old import audit entries" }
func (*auditPurgeCmd) Usage() string {
	return `audit-purge [-days n]

  Deletes audit entries older than n days. Defaults to AUDIT_RETENTION_DAYS.
`
}

func (c *auditPurgeCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "retention in days (default AUDIT_RETENTION_DAYS)")
}

func (c *auditPurgeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	days := c.days
	if days <= 0 {
		days = e.cfg.Audit.RetentionDays
	}

	purged, err := e.store.PurgeAuditEntries(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		printError(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted %d audit entries older than %d days\n", purged, days)
	return subcommands.ExitSuccess
}
