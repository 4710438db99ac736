// Package snapshot produces point-in-time datasets, diffs consecutive runs,
// and persists the dated audit-trail artifacts.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// Diff compares two snapshots keyed by canonical URL. skipped holds URLs
// whose fetch failed this run: they are unreachable rather than gone, so
// they never count as removed. Only the availability enum is compared for
// status changes, not the note text.
func Diff(prev, cur *model.Snapshot, skipped map[string]bool) model.ChangeSet {
	before := prev.ByURL()
	after := cur.ByURL()

	var cs model.ChangeSet

	for _, it := range cur.Items {
		if _, ok := before[it.CanonicalURL]; !ok {
			cs.Added = append(cs.Added, it)
		}
	}
	for _, it := range prev.Items {
		if _, ok := after[it.CanonicalURL]; ok {
			continue
		}
		if skipped[it.CanonicalURL] {
			continue
		}
		cs.Removed = append(cs.Removed, it)
	}
	for _, now := range cur.Items {
		was, ok := before[now.CanonicalURL]
		if !ok {
			continue
		}
		if was.Availability == now.Availability {
			continue
		}
		name := now.Name
		if name == "" {
			name = was.Name
		}
		postcode := now.Postcode
		if postcode == "" {
			postcode = was.Postcode
		}
		cs.StatusChanged = append(cs.StatusChanged, model.StatusChange{
			URL:      now.CanonicalURL,
			Name:     name,
			Postcode: postcode,
			From:     was.Availability,
			To:       now.Availability,
		})
	}
	return cs
}

// LoadLatest reads the rolling latest snapshot from dir. Returns an empty
// snapshot when none exists yet.
func LoadLatest(dir string) (*model.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, "snapshot-latest.json"))
	if os.IsNotExist(err) {
		return &model.Snapshot{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: read latest")
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "snapshot: parse latest")
	}
	return &snap, nil
}
