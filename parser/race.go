package parser

import "github.com/use-agent/dossier/models"

// RaceParser extracts an election-race page: the contested seat, its current
// leader and the race status.
type RaceParser struct{}

func (RaceParser) Parse(html string) (models.Record, bool) {
	doc, ok := document(html)
	if !ok {
		return models.Record{}, false
	}
	if doc.Find(".race-page").Length() == 0 {
		return models.Record{}, false
	}

	seat := text(doc, ".race-page h1, .race-page .race-seat")
	if seat == "" {
		return models.Record{}, false
	}

	fields := map[string]string{"name": seat}
	tableFields(doc, ".race-page table.race-details", fields)

	if v := text(doc, ".race-page .race-leader"); v != "" {
		fields["leader"] = v
	}
	if v := text(doc, ".race-page .race-status"); v != "" {
		fields["status"] = v
	}

	return models.Record{
		ID:     dataID(doc, ".race-page"),
		Fields: fields,
	}, true
}
