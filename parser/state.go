package parser

import "github.com/use-agent/dossier/models"

// StateParser extracts a state (entity-group) page: office holders and seat
// counts for one state of the simulated nation.
type StateParser struct{}

func (StateParser) Parse(html string) (models.Record, bool) {
	doc, ok := document(html)
	if !ok {
		return models.Record{}, false
	}
	if doc.Find(".state-page").Length() == 0 {
		return models.Record{}, false
	}

	name := text(doc, ".state-page h1, .state-page .state-name")
	if name == "" {
		return models.Record{}, false
	}

	fields := map[string]string{"name": name}
	tableFields(doc, ".state-page table.state-offices", fields)

	// Seat counts live in dedicated cells so partisan swings diff cleanly.
	if v := text(doc, ".state-page .senate-seats"); v != "" {
		fields["senate_seats"] = v
	}
	if v := text(doc, ".state-page .house-seats"); v != "" {
		fields["house_seats"] = v
	}
	if v := text(doc, ".state-page .governor"); v != "" {
		fields["governor"] = v
	}

	return models.Record{
		ID:     dataID(doc, ".state-page"),
		Fields: fields,
	}, true
}
