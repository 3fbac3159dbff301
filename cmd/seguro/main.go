// Command seguro imports rental-insurance spreadsheets, fills their coverage
// amounts from the premium reference table and keeps that table up to date
// from the insurer's PDF.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FACorreiaa/seguro-locacao/pkg/config"
)

const usage = `usage: seguro <command> [flags]

commands:
  import-tenants   -file planilha.csv [-out locatarios.json] [-csv locatarios.csv] [-pending pendencias.csv]
  import-policies  -file apolices.xlsx -agency 42 [-out apolices.jsonl]
  search-tenants   -file locatarios.json [-doc 123.456] [-name maria] [-limit 20]
  fill             -file entrada.xlsx -out resultado.xlsx
  import-pdf       -file tabela.pdf [-debug extract.txt] [-dry-run]
  watch            [-now]
  uploads          [-kind tenants] [-get <id> [-out arquivo]] [-delete <id>]
`

// errUsage marks command line mistakes; they exit with status 2.
var errUsage = errors.New("invalid usage")

type command func(ctx context.Context, deps *Dependencies, args []string, stdout io.Writer) error

var commands = map[string]command{
	"import-tenants":  runImportTenants,
	"import-policies": runImportPolicies,
	"search-tenants":  runSearchTenants,
	"fill":            runFill,
	"import-pdf":      runImportPDF,
	"watch":           runWatch,
	"uploads":         runUploads,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, deps, args[1:], stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		logger.Error("command failed", slog.String("command", args[0]), slog.Any("error", err))
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	return 0
}
