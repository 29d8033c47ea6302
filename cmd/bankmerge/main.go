// Command bankmerge imports bank statement files (QIF, OFX, QFX, CAMT.053)
// into a transaction ledger, reconciling against existing rows so re-imports
// and manually entered transactions never produce duplicates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/mwhitmer/bankmerge/internal/config"
	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/pipeline"
	"github.com/mwhitmer/bankmerge/internal/scanner"
	"github.com/mwhitmer/bankmerge/internal/store"
	"github.com/mwhitmer/bankmerge/internal/store/firestore"
	"github.com/mwhitmer/bankmerge/internal/store/sqlite"
	"github.com/mwhitmer/bankmerge/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	fileFlag  = flag.String("file", "", "Statement file to import")
	inputDir  = flag.String("input", "", "Directory of statements ({account}/file layout)")
	account   = flag.String("account", "", "Ledger account ID (required with -file)")
	createAcc = flag.Bool("create-account", false, "Create the account if it does not exist")

	dbPath           = flag.String("db", "bankmerge.db", "SQLite ledger database path")
	firestoreProject = flag.String("firestore-project", "", "Use Firestore ledger in this GCP project instead of SQLite")
	credentialsFile  = flag.String("credentials", "", "Service account credentials file for Firestore")

	configFile = flag.String("config", "", "YAML import configuration file")
	dateFormat = flag.String("date-format", "", "Override the QIF date layout (Go reference layout)")
	verbose    = flag.Bool("verbose", false, "Show debug logs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `bankmerge - bank statement import and ledger reconciliation

Usage:
  bankmerge [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import one OFX file into an account
  bankmerge -file checking.ofx -account checking -db ledger.db

  # Import a statement tree ({account}/file.ext)
  bankmerge -input ~/statements -create-account

  # QIF with European dates
  bankmerge -file export.qif -account giro -date-format 2/1/2006

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("bankmerge version %s\n", version)
		os.Exit(0)
	}

	if *fileFlag == "" && *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: one of -file or -input is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *fileFlag != "" && *account == "" {
		fmt.Fprintf(os.Stderr, "Error: -account is required with -file\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadFromFile(*configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *dateFormat != "" {
		fc := cfg.Formats["qif"]
		fc.DateLayout = *dateFormat
		cfg.Formats["qif"] = fc
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	p := pipeline.New(st, log)

	ui.Header("Importing Bank Statements")

	if *fileFlag != "" {
		return importOne(ctx, p, st, cfg, *fileFlag, *account)
	}
	return importTree(ctx, p, st, cfg)
}

func openStore(ctx context.Context) (store.Store, func(), error) {
	if *firestoreProject != "" {
		fs, err := firestore.NewStore(ctx, *firestoreProject, *credentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { fs.Close() }, nil
	}
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

// ensureAccount verifies the account exists, creating it when allowed.
func ensureAccount(ctx context.Context, st store.Store, id string) error {
	_, err := st.Account(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return err
	}
	if !*createAcc {
		return fmt.Errorf("account %s does not exist (use -create-account)", id)
	}
	return st.InsertAccount(ctx, &store.Account{ID: id, Name: id})
}

func importOne(ctx context.Context, p *pipeline.Pipeline, st store.Store, cfg *config.Config, path, accountID string) error {
	if err := ensureAccount(ctx, st, accountID); err != nil {
		return err
	}

	ui.Step(1, 1, filepath.Base(path))
	result := p.ImportFile(ctx, path, cfg.PipelineOptions(accountID))
	printResult(filepath.Base(path), result)

	if result.Fatal {
		return fmt.Errorf("import failed: %s", result.Errors[0].Message)
	}
	return nil
}

func importTree(ctx context.Context, p *pipeline.Pipeline, st store.Store, cfg *config.Config) error {
	files, err := scanner.New(*inputDir).Scan()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Warning("no statement files found")
		return nil
	}

	failures := 0
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		accountID := f.Metadata.AccountID()
		if accountID == "" {
			accountID = *account
		}
		if accountID == "" {
			ui.Warning(fmt.Sprintf("%s: no account directory and no -account flag, skipping", f.Path))
			failures++
			continue
		}
		if err := ensureAccount(ctx, st, accountID); err != nil {
			return err
		}

		ui.Step(i+1, len(files), fmt.Sprintf("%s (account %s)", filepath.Base(f.Path), accountID))
		result := p.ImportFile(ctx, f.Path, cfg.PipelineOptions(accountID))
		printResult(filepath.Base(f.Path), result)
		if result.Fatal {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed to import", failures, len(files))
	}
	return nil
}

func printResult(name string, result *domain.ImportBatchResult) {
	for _, e := range result.Errors {
		ui.Warning(fmt.Sprintf("%s: %s", name, e.Error()))
	}
	ui.Info(summarize(name, result))
}

// summarize renders the one-line outcome for a file.
func summarize(name string, result *domain.ImportBatchResult) string {
	switch {
	case result.Fatal:
		return fmt.Sprintf("%s: import aborted, nothing applied", name)
	case result.Partial():
		return fmt.Sprintf("%s: %d added, %d updated, %d records skipped",
			name, len(result.Added), len(result.Updated), len(result.Errors))
	default:
		return fmt.Sprintf("%s: %d added, %d updated", name, len(result.Added), len(result.Updated))
	}
}
