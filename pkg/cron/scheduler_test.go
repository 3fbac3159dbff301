package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

type fakeRefresher struct {
	table *reference.Table
	err   error
	path  string
	block chan struct{}
}

func (f *fakeRefresher) RefreshReference(ctx context.Context, path string, debug io.Writer) (*reference.Table, error) {
	f.path = path
	if f.block != nil {
		<-f.block
	}
	if debug != nil {
		io.WriteString(debug, "=== Pagina 1 ===\n")
	}
	return f.table, f.err
}

type runCounter struct {
	mu      sync.Mutex
	results []string
}

func (r *runCounter) RefreshRun(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunNow(t *testing.T) {
	table := reference.TableFromRows([]reference.Row{
		{Category: reference.ResidentialHouse, Premium: money.MustParse("150.00")},
	})
	debugPath := filepath.Join(t.TempDir(), "extract.txt")

	tests := []struct {
		name      string
		refresher *fakeRefresher
		want      string
	}{
		{"saved", &fakeRefresher{table: table}, "ok"},
		{"no rows", &fakeRefresher{}, "empty"},
		{"failure", &fakeRefresher{err: errors.New("boom")}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &runCounter{}
			s := NewScheduler(tt.refresher, Job{Spec: "@daily", PDFPath: "tabela.pdf", DebugPath: debugPath}, discardLogger()).
				WithRecorder(counter)

			assert.Equal(t, tt.want, s.RunNow())
			assert.Equal(t, "tabela.pdf", tt.refresher.path)
			assert.Equal(t, []string{tt.want}, counter.results)
		})
	}

	dump, err := os.ReadFile(debugPath)
	require.NoError(t, err)
	assert.Equal(t, "=== Pagina 1 ===\n", string(dump))
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	refresher := &fakeRefresher{block: make(chan struct{})}
	s := NewScheduler(refresher, Job{Spec: "@daily", PDFPath: "tabela.pdf"}, discardLogger())

	done := make(chan string)
	s.running.Lock()
	go func() { done <- s.RunNow() }()
	assert.Equal(t, "skipped", <-done)
	s.running.Unlock()
	close(refresher.block)
}

func TestScheduler_Start(t *testing.T) {
	s := NewScheduler(&fakeRefresher{}, Job{Spec: "@daily"}, discardLogger())
	assert.Error(t, s.Start(), "PDF path is required")

	s = NewScheduler(&fakeRefresher{}, Job{Spec: "not a spec", PDFPath: "x.pdf"}, discardLogger())
	assert.Error(t, s.Start())

	s = NewScheduler(&fakeRefresher{}, Job{Spec: "0 3 * * *", PDFPath: "x.pdf"}, discardLogger())
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}

func TestNewScheduler_NilLogger(t *testing.T) {
	refresher := &fakeRefresher{table: reference.NewTable()}
	s := NewScheduler(refresher, Job{Spec: "@daily", PDFPath: "tabela.pdf"}, nil)
	require.NotNil(t, s)

	assert.NotPanics(t, func() { s.RunNow() })
	assert.Equal(t, "tabela.pdf", refresher.path)
}
