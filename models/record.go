package models

import (
	"maps"
	"sort"
	"strconv"
	"time"
)

// Record is one crawled entity, keyed by the stable numeric ID the remote
// system assigned it. Fields hold whatever scalar values the domain's parser
// extracted. A record is always replaced wholesale on re-scrape, never
// field-merged, so a stale field can never outlive the scrape that produced
// it.
type Record struct {
	ID     int               `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Display returns a human-readable label for the record: its "name" field
// when present, otherwise the numeric ID.
func (r Record) Display() string {
	if name, ok := r.Fields["name"]; ok && name != "" {
		return name
	}
	return "#" + strconv.Itoa(r.ID)
}

// Snapshot is the full persisted record set of one domain as of the last
// completed pass. Record keys are decimal ID strings to match the on-disk
// JSON document.
type Snapshot struct {
	UpdatedAt time.Time         `json:"updatedAt"`
	Records   map[string]Record `json:"records"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Records: make(map[string]Record)}
}

// Clone returns a deep copy. Used to diff a pass against its pre-pass state.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		UpdatedAt: s.UpdatedAt,
		Records:   make(map[string]Record, len(s.Records)),
	}
	for k, r := range s.Records {
		cp := r
		cp.Fields = maps.Clone(r.Fields)
		out.Records[k] = cp
	}
	return out
}

// Put replaces the record for rec.ID wholesale.
func (s *Snapshot) Put(rec Record) {
	s.Records[strconv.Itoa(rec.ID)] = rec
}

// Get returns the record for id, if present.
func (s *Snapshot) Get(id int) (Record, bool) {
	r, ok := s.Records[strconv.Itoa(id)]
	return r, ok
}

// KnownIDs returns every record ID in ascending order.
func (s *Snapshot) KnownIDs() []int {
	ids := make([]int, 0, len(s.Records))
	for k := range s.Records {
		if id, err := strconv.Atoi(k); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// MaxID returns the highest known ID, or 0 for an empty snapshot.
func (s *Snapshot) MaxID() int {
	max := 0
	for k := range s.Records {
		if id, err := strconv.Atoi(k); err == nil && id > max {
			max = id
		}
	}
	return max
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.Records)
}
