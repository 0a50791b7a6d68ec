// Package web embeds the HTML templates and static assets served by the
// storefront.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates returns the template tree rooted at templates/.
func Templates() fs.FS {
	return mustSub(templatesFS, "templates")
}

// Static returns the asset tree rooted at static/.
func Static() fs.FS {
	return mustSub(staticFS, "static")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
