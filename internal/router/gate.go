package router

import (
	"net/http"
	"time"

	"furniture-dashboard/internal/handler"
	"furniture-dashboard/internal/session"
	"furniture-dashboard/internal/workspace"
)

type Tree int

const (
	TreePublic Tree = iota
	TreePrivate
)

func (t Tree) String() string {
	if t == TreePrivate {
		return "private"
	}
	return "public"
}

// SelectTree picks the route tree a resolved session is allowed to see.
func SelectTree(s session.State) Tree {
	if session.IsAuthenticated(s) {
		return TreePrivate
	}
	return TreePublic
}

// Gate routes each request into the public or private tree of the
// visitor's session. It never routes an unresolved session: after waiting
// up to Wait it answers with the loading response instead.
type Gate struct {
	Wait    time.Duration
	Public  http.Handler
	Private http.Handler
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := workspace.FromContext(r.Context())
	if err != nil {
		handler.APINotFound(w, r)
		return
	}

	if !ws.WaitResolved(r.Context(), g.Wait) {
		handler.Loading(w, r)
		return
	}

	if SelectTree(ws.Store.State()) == TreePrivate {
		g.Private.ServeHTTP(w, r)
		return
	}
	g.Public.ServeHTTP(w, r)
}
