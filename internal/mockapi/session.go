package mockapi

import (
	"context"
	"net/http"
)

type contextKey string

const sessionContextKey contextKey = "mockapi_session"

type session struct {
	account account
	tokenID string
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			writeMessage(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		acc, tokenID, err := s.accounts.Validate(c.Value)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Session expired")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session{account: acc, tokenID: tokenID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) session {
	sess, _ := r.Context().Value(sessionContextKey).(session)
	return sess
}
