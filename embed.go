package portfolio

import "embed"

// TemplateFS contains the HTML templates of the site: the layout, one file per page and the partials
// that are also rendered on their own for server-sent events.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the stylesheet, the chat script and the images served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
