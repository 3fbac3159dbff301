package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/header"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/parser"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/pdftable"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/search"
	importservice "github.com/FACorreiaa/seguro-locacao/internal/domain/import/service"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/sniffer"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/cron"
	"github.com/FACorreiaa/seguro-locacao/pkg/storage"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func readUpload(path string) (importservice.Upload, error) {
	if path == "" {
		return importservice.Upload{}, fmt.Errorf("%w: -file is required", errUsage)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return importservice.Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return importservice.Upload{Filename: filepath.Base(path), Data: data}, nil
}

// writeOutput writes to path, or to stdout when path is "" or "-".
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(stdout)
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func runImportTenants(ctx context.Context, deps *Dependencies, args []string, stdout io.Writer) error {
	fs := newFlagSet("import-tenants")
	file := fs.String("file", "", "tenant spreadsheet (csv, xlsx, xls)")
	out := fs.String("out", "", "JSON output, stdout when empty")
	csvOut := fs.String("csv", "", "optional ';' separated export")
	pending := fs.String("pending", "", "optional report of rows with missing fields")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	upload, err := readUpload(*file)
	if err != nil {
		return err
	}
	result, err := deps.ImportService.ImportTenants(ctx, upload)
	if err != nil {
		return err
	}

	if err := writeOutput(*out, stdout, func(w io.Writer) error {
		return importservice.WriteTenantsJSON(w, result.Tenants)
	}); err != nil {
		return err
	}
	if *csvOut != "" {
		if err := writeOutput(*csvOut, stdout, func(w io.Writer) error {
			return importservice.WriteTenantsCSV(w, result.Tenants)
		}); err != nil {
			return err
		}
	}
	if *pending != "" && len(result.Errors) > 0 {
		if err := writeOutput(*pending, stdout, func(w io.Writer) error {
			return importservice.WritePendingCSV(w, result.Errors)
		}); err != nil {
			return err
		}
	}

	deps.Logger.Info(result.Summary(),
		slog.String("job_id", result.JobID.String()),
		slog.Int("filled", result.RowsFilled),
	)
	return nil
}

func runImportPolicies(ctx context.Context, deps *Dependencies, args []string, stdout io.Writer) error {
	fs := newFlagSet("import-policies")
	file := fs.String("file", "", "policy spreadsheet (csv, xlsx, xls)")
	agency := fs.String("agency", "", "agency (imobiliária) id")
	out := fs.String("out", "", "JSON lines output, stdout when empty")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	agencyID, err := strconv.ParseInt(*agency, 10, 64)
	if err != nil || agencyID <= 0 {
		return fmt.Errorf("%w: -agency must be a positive integer", errUsage)
	}
	upload, err := readUpload(*file)
	if err != nil {
		return err
	}

	var result *importservice.PolicyImportResult
	err = writeOutput(*out, stdout, func(w io.Writer) error {
		var importErr error
		result, importErr = deps.ImportService.ImportPolicies(ctx, upload, agencyID, importservice.NewJSONLinesSink(w))
		return importErr
	})
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		deps.Logger.Warn("policy row skipped", slog.Int("row", e.Row), slog.String("reason", e.Message))
	}
	deps.Logger.Info("policies imported",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", len(result.Errors)),
	)
	return nil
}

func runSearchTenants(_ context.Context, _ *Dependencies, args []string, stdout io.Writer) error {
	fs := newFlagSet("search-tenants")
	file := fs.String("file", "", "JSON written by import-tenants")
	doc := fs.String("doc", "", "CPF/CNPJ fragment, masked or not")
	name := fs.String("name", "", "name, city or address; accents and one typo are tolerated")
	limit := fs.Int("limit", 20, "maximum number of name matches")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *file, err)
	}
	defer f.Close()

	tenants, err := importservice.ReadTenantsJSON(f)
	if err != nil {
		return err
	}

	index, err := search.NewTenantIndex()
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Index(tenants); err != nil {
		return err
	}
	hits, err := index.Lookup(*doc, *name, *limit)
	if err != nil {
		return err
	}
	tenants = make([]importservice.Tenant, len(hits))
	for i, h := range hits {
		tenants[i] = h.Tenant
	}
	return importservice.WriteTenantsJSON(stdout, tenants)
}

func runFill(ctx context.Context, deps *Dependencies, args []string, stdout io.Writer) error {
	fs := newFlagSet("fill")
	file := fs.String("file", "", "workbook with a credito_s_multa column")
	out := fs.String("out", "", "filled XLSX output")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: -out is required", errUsage)
	}

	upload, err := readUpload(*file)
	if err != nil {
		return err
	}

	var result *importservice.FillResult
	err = writeOutput(*out, stdout, func(w io.Writer) error {
		var fillErr error
		result, fillErr = deps.ImportService.FillWorkbook(ctx, upload, w)
		return fillErr
	})
	if err != nil {
		return err
	}

	unresolved := 0
	for _, row := range result.Rows {
		if row.Outcome != importservice.OutcomeResolved {
			unresolved++
			deps.Logger.Debug("row not filled", slog.Int("row", row.Row), slog.String("outcome", string(row.Outcome)))
		}
	}
	deps.Logger.Info("workbook filled",
		slog.String("out", *out),
		slog.Int("rows", len(result.Rows)),
		slog.Int("cells", result.CellsFilled),
		slog.Int("unresolved", unresolved),
	)
	return nil
}

func runImportPDF(ctx context.Context, deps *Dependencies, args []string, stdout io.Writer) error {
	fs := newFlagSet("import-pdf")
	file := fs.String("file", deps.Config.Reference.PDFPath, "insurer reference PDF")
	debugPath := fs.String("debug", deps.Config.PDF.DebugExtractPath, "dump the extracted text here")
	dryRun := fs.Bool("dry-run", false, "print the table instead of saving it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	var debug io.Writer
	if *debugPath != "" {
		f, err := os.Create(*debugPath)
		if err != nil {
			return fmt.Errorf("failed to create debug extract: %w", err)
		}
		defer f.Close()
		debug = f
	}

	rows, err := deps.ImportService.ImportReferencePDF(ctx, *file, debug)
	if err != nil {
		return err
	}

	if *dryRun {
		data, err := reference.EncodeTable(reference.TableFromRows(pdftable.Rows(rows)))
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	if len(rows) == 0 {
		deps.Logger.Warn("no reference rows found, table left unchanged", slog.String("file", *file))
		return nil
	}
	table, err := deps.ImportService.SaveReference(ctx, rows)
	if err != nil {
		return err
	}
	deps.Logger.Info("reference table saved",
		slog.String("path", deps.ReferenceStore.Path()),
		slog.Int("rows", len(rows)),
		slog.Int("entries", table.Len()),
	)
	return nil
}

func runWatch(ctx context.Context, deps *Dependencies, args []string, _ io.Writer) error {
	fs := newFlagSet("watch")
	now := fs.Bool("now", false, "refresh once before waiting for the schedule")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	scheduler := cron.NewScheduler(deps.ImportService, cron.Job{
		Spec:      deps.Config.Reference.RefreshCron,
		PDFPath:   deps.Config.Reference.PDFPath,
		DebugPath: deps.Config.PDF.DebugExtractPath,
	}, deps.Logger).WithRecorder(deps.Metrics)

	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	if *now {
		deps.Logger.Info("initial reference refresh", slog.String("result", scheduler.RunNow()))
	}

	if !deps.Config.Observability.MetricsEnabled {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runUploads(ctx context.Context, deps *Dependencies, args []string, stdout io.Writer) error {
	fs := newFlagSet("uploads")
	kind := fs.String("kind", "tenants", "tenants, policies, fill or reference")
	get := fs.String("get", "", "id of an archived file to copy out")
	del := fs.String("delete", "", "id of an archived file to remove")
	out := fs.String("out", "", "destination of -get, stdout when empty")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	parseID := func(flagName, value string) (uuid.UUID, error) {
		id, err := uuid.Parse(value)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: -%s must be a file id", errUsage, flagName)
		}
		return id, nil
	}

	switch {
	case *get != "":
		id, err := parseID("get", *get)
		if err != nil {
			return err
		}
		rc, info, err := deps.FileStorage.Open(ctx, *kind, id)
		if err != nil {
			return err
		}
		defer rc.Close()
		if err := writeOutput(*out, stdout, func(w io.Writer) error {
			_, err := io.Copy(w, rc)
			return err
		}); err != nil {
			return err
		}
		deps.Logger.Info("archived upload copied", slog.String("file", info.Name), slog.Int64("size", info.Size))
		return nil

	case *del != "":
		id, err := parseID("delete", *del)
		if err != nil {
			return err
		}
		if err := deps.FileStorage.Delete(ctx, *kind, id); err != nil {
			return err
		}
		deps.Logger.Info("archived upload deleted", slog.String("kind", *kind), slog.String("id", id.String()))
		return nil
	}

	files, err := deps.FileStorage.List(ctx, *kind)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(files)
}

// describe turns the errors a user can act on into a short message.
func describe(err error) string {
	var missing *header.MissingRequiredColumnsError
	switch {
	case errors.As(err, &missing):
		return "the spreadsheet header is incomplete: " + missing.Error()
	case errors.Is(err, importservice.ErrEmptyReference):
		return "the reference table is empty; run import-pdf first"
	case errors.Is(err, pdftable.ErrImageOnlyDocument):
		return "the PDF has no text layer; run it through OCR first"
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return "unsupported file format; use CSV, XLSX or XLS"
	case errors.Is(err, sniffer.ErrEmptyFile):
		return "the file is empty"
	case errors.Is(err, storage.ErrNotFound):
		return "no archived upload with that id"
	case errors.Is(err, reference.ErrMalformedTable):
		return "the stored reference table is corrupt; re-run import-pdf"
	}
	return "error: " + err.Error()
}
