package handler

import (
	"net/http"
	"os"
	"path/filepath"
)

// PageHandler serves the dashboard's HTML pages from a static directory.
// Without one it answers with the page name and the session, which is all
// a client-rendered UI needs.
type PageHandler struct {
	staticDir string
}

func NewPageHandler(staticDir string) *PageHandler {
	return &PageHandler{staticDir: staticDir}
}

type pageView struct {
	Page    string `json:"page"`
	Session any    `json:"session"`
}

func (h *PageHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.staticDir != "" {
			file := filepath.Join(h.staticDir, name+".html")
			if info, err := os.Stat(file); err == nil && !info.IsDir() {
				http.ServeFile(w, r, file)
				return
			}
		}

		ws, ok := currentWorkspace(w, r)
		if !ok {
			return
		}
		writeSuccess(w, http.StatusOK, pageView{Page: name, Session: ws.Auth.Session().View()})
	}
}
