// Package notify hands change sets to their consumers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/reporting"
)

// Notifier delivers a change set.
type Notifier interface {
	Notify(ctx context.Context, cs domain.ChangeSet) error
}

// WriterNotifier renders change sets as Markdown to a writer.
type WriterNotifier struct {
	mu   sync.Mutex
	w    io.Writer
	opts reporting.Options
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer, opts reporting.Options) *WriterNotifier {
	return &WriterNotifier{w: w, opts: opts}
}

// Notify writes the rendered body followed by a blank line.
func (n *WriterNotifier) Notify(ctx context.Context, cs domain.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := reporting.RenderChangeSet(cs, n.opts)

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := io.WriteString(n.w, body+"\n"); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// FileNotifier writes each change set to path, replacing its contents.
type FileNotifier struct {
	path string
	opts reporting.Options
}

// NewFileNotifier creates a notifier writing to path.
func NewFileNotifier(path string, opts reporting.Options) *FileNotifier {
	return &FileNotifier{path: path, opts: opts}
}

// Notify renders cs and writes it to the file.
func (n *FileNotifier) Notify(ctx context.Context, cs domain.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := reporting.RenderChangeSet(cs, n.opts)
	if err := os.WriteFile(n.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write notification %s: %w", n.path, err)
	}
	return nil
}

// LogNotifier logs a one-line summary of each change set.
type LogNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier creates a notifier logging to logger.
func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the change set at Info.
func (n *LogNotifier) Notify(_ context.Context, cs domain.ChangeSet) error {
	fields := logrus.Fields{
		"dataset": cs.Dataset,
		"date":    cs.Date.Format(domain.DateLayout),
		"changes": len(cs.Changes),
	}
	if cs.Aggregate != nil {
		fields["aggregate"] = *cs.Aggregate
	}
	for _, f := range cs.Figures {
		fields[f.Name] = f.Change
	}
	n.logger.WithFields(fields).Info("change set")
	return nil
}

// Multi fans a change set out to several notifiers. Every notifier is
// called; their errors are joined.
type Multi []Notifier

// Notify calls each notifier in order.
func (m Multi) Notify(ctx context.Context, cs domain.ChangeSet) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, cs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
