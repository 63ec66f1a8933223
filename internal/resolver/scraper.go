package resolver

import (
	"bytes"
	"html/template"

	"github.com/linkforty/linkforty/internal/domain"
)

// ogPageData carries Open Graph + Twitter Card fields for the
// social-scraper branch.
type ogPageData struct {
	Title        string
	Description  string
	ImageURL     string
	CanonicalURL string
	RefreshURL   string
}

var ogPageTmpl = template.Must(template.New("og_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<title>{{.Title}}</title>
	<meta property="og:title" content="{{.Title}}" />
	<meta property="og:description" content="{{.Description}}" />
	{{if .ImageURL}}<meta property="og:image" content="{{.ImageURL}}" />{{end}}
	<meta property="og:url" content="{{.CanonicalURL}}" />
	<meta name="twitter:card" content="summary_large_image" />
	<meta name="twitter:title" content="{{.Title}}" />
	<meta name="twitter:description" content="{{.Description}}" />
	{{if .ImageURL}}<meta name="twitter:image" content="{{.ImageURL}}" />{{end}}
	{{if .RefreshURL}}<meta http-equiv="refresh" content="0; url={{.RefreshURL}}" />{{end}}
</head>
<body>
	<h1>{{.Title}}</h1>
	<p>{{.Description}}</p>
	{{if .RefreshURL}}<p><a href="{{.RefreshURL}}">Continue</a></p>{{end}}
</body>
</html>
`))

// renderScraperHTML builds the OG/Twitter Card document returned to link
// preview crawlers, falling back to title/description/origin.
// No auto-refresh is emitted — scrapers must not be redirected.
func renderScraperHTML(link *domain.Link) string {
	title := link.OGTitle
	if title == "" {
		title = link.OriginURL
	}
	description := link.OGDescription
	if description == "" {
		description = link.OriginURL
	}

	data := ogPageData{
		Title:        title,
		Description:  description,
		ImageURL:     link.OGImageURL,
		CanonicalURL: link.OriginURL,
	}

	var buf bytes.Buffer
	if err := ogPageTmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

// renderPreviewHTML builds the same OG/Twitter Card document plus a
// meta-refresh to destination, for the always-HTML preview route
// (GET /{code}/preview).
func renderPreviewHTML(link *domain.Link, destination string) string {
	title := link.OGTitle
	if title == "" {
		title = link.OriginURL
	}
	description := link.OGDescription
	if description == "" {
		description = link.OriginURL
	}

	data := ogPageData{
		Title:        title,
		Description:  description,
		ImageURL:     link.OGImageURL,
		CanonicalURL: link.OriginURL,
		RefreshURL:   destination,
	}

	var buf bytes.Buffer
	if err := ogPageTmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}
