package auth

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/use-agent/dossier/models"
)

// snapshotTextLimit caps the readable text attached to an auth failure.
const snapshotTextLimit = 2000

// snapshotConverter strips scripts, styles and other noise and renders the
// remainder as markdown, which reads far better in a failure report than raw
// HTML.
var snapshotConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// capturePageSnapshot grabs title + truncated readable text of whatever page
// the surface is currently on. Everything is best-effort: a snapshot failure
// must never mask the authentication error it decorates.
func capturePageSnapshot(s Surface) *models.PageSnapshot {
	snap := &models.PageSnapshot{
		URL:   s.Location(),
		Title: s.Title(),
	}

	html, err := s.HTML()
	if err != nil || html == "" {
		return snap
	}

	text, err := snapshotConverter.ConvertString(html)
	if err != nil {
		return snap
	}
	if runes := []rune(text); len(runes) > snapshotTextLimit {
		text = string(runes[:snapshotTextLimit]) + "…"
	}
	snap.Text = text
	return snap
}
