package speech

import (
	"net/http"
	"path/filepath"
	"strings"
)

const audioPrefix = "/audio/"

// AudioURL is the path the frontend plays path from.
func AudioURL(path string) string {
	return audioPrefix + filepath.Base(path)
}

// Handler serves the synthesized files in dir under /audio/. Anything else is
// not found.
func Handler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := strings.CutPrefix(r.URL.Path, audioPrefix)
		if !ok || name == "" || strings.ContainsAny(name, `/\`) || filepath.Ext(name) != ".wav" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		http.ServeFile(w, r, filepath.Join(dir, name))
	})
}
