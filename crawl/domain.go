package crawl

import (
	"fmt"

	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/parser"
)

// Domain is one category of crawled entity with its own ID space, page
// layout and snapshot. Domains within a tick run strictly sequentially: they
// share the pooled browsers, and concurrent heavy page loads against the
// same remote host invite its anti-bot defenses.
type Domain struct {
	Name   string
	Bounds config.DomainConfig

	// WatchFields are diffed between passes; changes show up in the report.
	WatchFields []string

	Parser parser.Parser

	// PagePath builds the site-relative path of an entity page.
	PagePath func(id int) string
}

// DefaultDomains returns the three shipped domains wired to their parsers
// and configured ID-space bounds.
func DefaultDomains(cfg config.CrawlConfig) []Domain {
	return []Domain{
		{
			Name:        "profiles",
			Bounds:      cfg.Profiles,
			WatchFields: []string{"office", "party"},
			Parser:      parser.ProfileParser{},
			PagePath:    func(id int) string { return fmt.Sprintf("/profile/%d", id) },
		},
		{
			Name:        "states",
			Bounds:      cfg.States,
			WatchFields: []string{"governor", "senate_seats", "house_seats"},
			Parser:      parser.StateParser{},
			PagePath:    func(id int) string { return fmt.Sprintf("/state/%d", id) },
		},
		{
			Name:        "races",
			Bounds:      cfg.Races,
			WatchFields: []string{"leader", "status"},
			Parser:      parser.RaceParser{},
			PagePath:    func(id int) string { return fmt.Sprintf("/race/%d", id) },
		},
	}
}
