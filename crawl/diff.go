package crawl

import (
	"fmt"

	"github.com/use-agent/dossier/models"
)

// Diff compares two snapshots across a fixed watch-list of fields and
// returns human-readable change lines, in ascending record-ID order. Records
// present only in before are not reported: a pass never deletes, so their
// absence from after cannot happen.
func Diff(before, after *models.Snapshot, watchFields []string) []string {
	changes := []string{}
	for _, id := range after.KnownIDs() {
		cur, _ := after.Get(id)
		prev, existed := before.Get(id)
		if !existed {
			changes = append(changes, fmt.Sprintf("new: %s", cur.Display()))
			continue
		}
		for _, field := range watchFields {
			oldVal := prev.Fields[field]
			newVal := cur.Fields[field]
			if oldVal == newVal {
				continue
			}
			changes = append(changes, fmt.Sprintf("%s: %s %q -> %q", cur.Display(), field, oldVal, newVal))
		}
	}
	return changes
}
