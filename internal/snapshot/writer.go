package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// Writer persists snapshot and change artifacts under a single output
// directory. Dated files are the audit trail and are never overwritten;
// the "latest" aliases always track the most recent run.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a Writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "snapshot: create output dir %s", dir)
	}
	return &Writer{
		dir:    dir,
		logger: zap.L().With(zap.String("component", "snapshot")),
	}, nil
}

// WriteSnapshot persists snap as a dated immutable file plus the rolling
// latest alias. Returns the dated file path.
func (w *Writer) WriteSnapshot(snap *model.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "snapshot: marshal")
	}

	dated, err := w.writeDated("snapshot", ".json", snap.GeneratedAt, data)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(w.dir, "snapshot-latest.json"), data, 0o644); err != nil {
		return "", eris.Wrap(err, "snapshot: write latest")
	}

	w.logger.Info("snapshot written", zap.String("path", dated), zap.Int("total", snap.Total))
	return dated, nil
}

// WriteChanges persists the change set as a dated JSON record plus the
// timestamped and latest markdown summaries.
func (w *Writer) WriteChanges(cs model.ChangeSet, runAt time.Time) error {
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal changes")
	}
	if _, err := w.writeDated("changes", ".json", runAt, data); err != nil {
		return err
	}

	md := RenderMarkdown(cs, runAt)
	fileStamp := strings.NewReplacer(":", "-", ".", "-").Replace(runAt.UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(filepath.Join(w.dir, "changes-"+fileStamp+".md"), []byte(md), 0o644); err != nil {
		return eris.Wrap(err, "snapshot: write markdown")
	}
	if err := os.WriteFile(filepath.Join(w.dir, "changes-latest.md"), []byte(md), 0o644); err != nil {
		return eris.Wrap(err, "snapshot: write latest markdown")
	}

	w.logger.Info("changes written",
		zap.Int("added", len(cs.Added)),
		zap.Int("removed", len(cs.Removed)),
		zap.Int("status_changed", len(cs.StatusChanged)))
	return nil
}

// writeDated writes an immutable dated artifact. When the day's file already
// exists (a rerun), it falls back to a timestamped name rather than
// overwriting the audit trail.
func (w *Writer) writeDated(prefix, ext string, at time.Time, data []byte) (string, error) {
	path := filepath.Join(w.dir, prefix+"-"+at.UTC().Format("20060102")+ext)
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(w.dir, prefix+"-"+at.UTC().Format("20060102-150405")+ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "snapshot: write %s", path)
	}
	return path, nil
}

// RenderMarkdown formats a change set as the human-readable run summary.
func RenderMarkdown(cs model.ChangeSet, runAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Nightly NHS changes (%s)\n", runAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\n**New practices:** %d\n", len(cs.Added))
	fmt.Fprintf(&b, "**Removed practices:** %d\n", len(cs.Removed))
	fmt.Fprintf(&b, "**Status changes:** %d\n", len(cs.StatusChanged))

	b.WriteString("\n## Status changes\n")
	if len(cs.StatusChanged) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range cs.StatusChanged {
		fmt.Fprintf(&b, "- %s (%s): *%s -> %s*\n", orDefault(c.Name, "Practice"), orDefault(c.Postcode, "n/a"), c.From, c.To)
	}

	b.WriteString("\n## New practices\n")
	writePracticeList(&b, cs.Added)

	b.WriteString("\n## Removed practices\n")
	writePracticeList(&b, cs.Removed)

	return b.String()
}

func writePracticeList(b *strings.Builder, recs []model.PracticeRecord) {
	if len(recs) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, p := range recs {
		fmt.Fprintf(b, "- %s (%s): %s\n", orDefault(p.Name, "Practice"), orDefault(p.Postcode, "n/a"), p.CanonicalURL)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
