package parser

import "github.com/use-agent/dossier/models"

// ProfileParser extracts a player profile. The page is recognised by its
// .profile-page container; the display name is the only required field, the
// rest comes from the detail table as-is.
type ProfileParser struct{}

func (ProfileParser) Parse(html string) (models.Record, bool) {
	doc, ok := document(html)
	if !ok {
		return models.Record{}, false
	}
	if doc.Find(".profile-page").Length() == 0 {
		return models.Record{}, false
	}

	name := text(doc, ".profile-page h1, .profile-page .profile-name")
	if name == "" {
		return models.Record{}, false
	}

	fields := map[string]string{"name": name}
	tableFields(doc, ".profile-page table.profile-details", fields)

	if party := text(doc, ".profile-page .party"); party != "" {
		fields["party"] = party
	}
	if office := text(doc, ".profile-page .current-office"); office != "" {
		fields["office"] = office
	}

	return models.Record{
		ID:     dataID(doc, ".profile-page"),
		Fields: fields,
	}, true
}
