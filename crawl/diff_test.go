package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/dossier/models"
)

func snapWith(records ...models.Record) *models.Snapshot {
	s := models.NewSnapshot()
	for _, r := range records {
		s.Put(r)
	}
	return s
}

func TestDiff_IdenticalSnapshotsProduceNoChanges(t *testing.T) {
	before := snapWith(models.Record{ID: 1, Fields: map[string]string{"name": "Ada", "office": "Senator"}})
	after := before.Clone()

	changes := Diff(before, after, []string{"office", "party"})
	require.Empty(t, changes)
}

func TestDiff_NewRecord(t *testing.T) {
	before := snapWith()
	after := snapWith(models.Record{ID: 7, Fields: map[string]string{"name": "Pat Reyes"}})

	changes := Diff(before, after, []string{"office"})
	require.Equal(t, []string{"new: Pat Reyes"}, changes)
}

func TestDiff_WatchedFieldChange(t *testing.T) {
	before := snapWith(models.Record{ID: 7, Fields: map[string]string{"name": "Pat Reyes", "office": "Governor"}})
	after := snapWith(models.Record{ID: 7, Fields: map[string]string{"name": "Pat Reyes", "office": "Senator"}})

	changes := Diff(before, after, []string{"office"})
	require.Equal(t, []string{`Pat Reyes: office "Governor" -> "Senator"`}, changes)
}

func TestDiff_UnwatchedFieldChangeIgnored(t *testing.T) {
	before := snapWith(models.Record{ID: 7, Fields: map[string]string{"name": "Pat", "approval": "60%"}})
	after := snapWith(models.Record{ID: 7, Fields: map[string]string{"name": "Pat", "approval": "12%"}})

	changes := Diff(before, after, []string{"office", "party"})
	require.Empty(t, changes)
}

func TestDiff_OrderedByID(t *testing.T) {
	before := snapWith()
	after := snapWith(
		models.Record{ID: 30, Fields: map[string]string{"name": "C"}},
		models.Record{ID: 2, Fields: map[string]string{"name": "A"}},
		models.Record{ID: 11, Fields: map[string]string{"name": "B"}},
	)

	changes := Diff(before, after, nil)
	require.Equal(t, []string{"new: A", "new: B", "new: C"}, changes)
}

func TestDiff_FieldClearedToEmpty(t *testing.T) {
	before := snapWith(models.Record{ID: 5, Fields: map[string]string{"name": "Kim", "leader": "Kim"}})
	after := snapWith(models.Record{ID: 5, Fields: map[string]string{"name": "Kim"}})

	changes := Diff(before, after, []string{"leader"})
	require.Equal(t, []string{`Kim: leader "Kim" -> ""`}, changes)
}
