// Package parser maps rendered HTML pages to typed records. Parsers are pure
// functions over the document: structural mismatch means "not this kind of
// page" and is reported as a miss, never an error. The crawl scheduler treats
// a parse miss identically to a fetch miss.
package parser

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dossier/models"
)

// Parser maps a page's rendered HTML to a record. ok is false on any
// structural mismatch.
type Parser interface {
	Parse(html string) (models.Record, bool)
}

// Func adapts a plain function to the Parser interface.
type Func func(html string) (models.Record, bool)

func (f Func) Parse(html string) (models.Record, bool) {
	return f(html)
}

// document parses html, returning ok=false instead of an error on malformed
// input.
func document(html string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// text returns the trimmed text of the first node matching sel.
func text(doc *goquery.Document, sel string) string {
	return strings.TrimSpace(doc.Find(sel).First().Text())
}

// dataID reads a numeric id from the container's data-id attribute.
func dataID(doc *goquery.Document, containerSel string) int {
	raw, ok := doc.Find(containerSel).First().Attr("data-id")
	if !ok {
		return 0
	}
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return id
}

// tableFields collects the key/value rows of a detail table into a field
// map. Keys are lower-snake-cased header cells.
func tableFields(doc *goquery.Document, tableSel string, fields map[string]string) {
	doc.Find(tableSel + " tr").Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("th").First().Text())
		value := strings.TrimSpace(row.Find("td").First().Text())
		if key == "" || value == "" {
			return
		}
		key = strings.ToLower(strings.ReplaceAll(key, " ", "_"))
		fields[key] = value
	})
}
