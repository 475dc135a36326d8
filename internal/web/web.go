// Package web holds the HTML templates and browser assets. Both are
// compiled into the binary, so a deploy is one file.
package web

import (
	"embed"
	"io/fs"
)

// Templates contains templates/*.html. Every page is parsed together with
// templates/base.html, which supplies the layout and calls {{template "content" .}}.
//
//go:embed templates/*.html
var Templates embed.FS

//go:embed static
var static embed.FS

// Static is the asset tree served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// "static" is a literal embedded above; Sub cannot fail for it.
		panic(err)
	}
	return sub
}
