package web

import (
	"embed"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"wayfinder/internal/session"
)

//go:embed index.html
var content embed.FS

// consumeCredential intercepts page loads carrying the OAuth token handoff
// in the query string. The credential is stored and resolved, then the
// browser is redirected to the same URL with the credential parameters
// stripped so tokens never linger in the address bar or history.
func (s *Server) consumeCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := session.CredentialFromQuery(r.URL.Query())
		if cred == nil {
			next.ServeHTTP(w, r)
			return
		}

		mgr, _ := s.manager(w, r)
		snap := mgr.Resolve(r.Context(), cred)
		if !snap.Authenticated {
			s.logger.Warn("token handoff could not be resolved", "path", r.URL.Path)
		}
		http.Redirect(w, r, session.StripCredentialParams(r.URL), http.StatusFound)
	})
}

// pageHandler serves the application shell. With web.dir configured the
// built assets come from disk, with unknown paths falling back to the shell
// so client-side routes resolve; otherwise the embedded shell is served.
func (s *Server) pageHandler() http.Handler {
	if dir := s.cfg.Web.Dir; dir != "" {
		return pagesFromDisk(dir)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := content.ReadFile("index.html")
		if err != nil {
			http.Error(w, "page shell not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	})
}

func pagesFromDisk(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.Clean(strings.TrimPrefix(r.URL.Path, "/")))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
