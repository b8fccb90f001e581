package httpadapter

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webFiles embed.FS

// webUI serves the browser client: index.html at / and assets under /static/.
func webUI() (index http.HandlerFunc, static http.Handler) {
	root, err := fs.Sub(webFiles, "web")
	if err != nil {
		// The directory is embedded at build time.
		panic(err)
	}
	page, err := fs.ReadFile(root, "index.html")
	if err != nil {
		panic(err)
	}

	index = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	}
	return index, http.StripPrefix("/static/", http.FileServer(http.FS(root)))
}
