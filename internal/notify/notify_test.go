package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/reporting"
)

func sampleChangeSet() domain.ChangeSet {
	agg := 170.0
	return domain.ChangeSet{
		Dataset:   "oil-etfs",
		Date:      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Changes:   []domain.SeriesChange{{Series: "USO", Current: domain.Number(120), Previous: domain.Number(100), Direction: domain.DirectionUp}},
		Aggregate: &agg,
		Figures:   []domain.WindowFigure{{Name: "WoW", Offset: 5, Change: 20}},
	}
}

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriterNotifier(&buf, reporting.Options{Title: "Retail Oil ETFs"})

	require.NoError(t, n.Notify(context.Background(), sampleChangeSet()))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Retail Oil ETFs\n"))
	assert.Contains(t, out, "- USO: 120 🔺 (previous: 100)")
}

func TestFileNotifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.md")
	n := NewFileNotifier(path, reporting.Options{})

	require.NoError(t, n.Notify(context.Background(), sampleChangeSet()))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Week over Week Change")
}

func TestFileNotifier_BadPath(t *testing.T) {
	n := NewFileNotifier(filepath.Join(t.TempDir(), "missing", "body.md"), reporting.Options{})
	assert.Error(t, n.Notify(context.Background(), sampleChangeSet()))
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	require.NoError(t, NewLogNotifier(logger).Notify(context.Background(), sampleChangeSet()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "change set", entry.Message)
	assert.Equal(t, 1, entry.Data["changes"])
	assert.Equal(t, 20.0, entry.Data["WoW"])
}

type failing struct{ err error }

func (f failing) Notify(context.Context, domain.ChangeSet) error { return f.err }

func TestMulti_CallsAllAndJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("smtp down")
	m := Multi{failing{boom}, NewWriterNotifier(&buf, reporting.Options{})}

	err := m.Notify(context.Background(), sampleChangeSet())
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, buf.String(), "later notifiers still run")
}

func TestWriterNotifier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewWriterNotifier(&buf, reporting.Options{}).Notify(ctx, sampleChangeSet())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}
