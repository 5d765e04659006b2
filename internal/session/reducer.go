package session

import "furniture-dashboard/internal/model"

type EventType string

const (
	WhoAmIFulfilled      EventType = "whoami/fulfilled"
	WhoAmIRejected       EventType = "whoami/rejected"
	LoginFulfilled       EventType = "login/fulfilled"
	RegisterFulfilled    EventType = "register/fulfilled"
	RefreshFulfilled     EventType = "refresh/fulfilled"
	LogoutRequested      EventType = "logout/requested"
	LogoutFulfilled      EventType = "logout/fulfilled"
	LogoutRejected       EventType = "logout/rejected"
	UnauthorizedObserved EventType = "unauthorized/observed"
)

type Event struct {
	Type EventType
	User *model.UserProfile
}

// Reduce computes the state that follows ev. It has no side effects.
func Reduce(s State, ev Event) State {
	switch ev.Type {
	case WhoAmIFulfilled:
		if ev.User == nil {
			return anonymous()
		}
		return authenticated(ev.User)

	case WhoAmIRejected, LogoutFulfilled, UnauthorizedObserved:
		return anonymous()

	case LoginFulfilled, RegisterFulfilled:
		if ev.User == nil {
			return s
		}
		return authenticated(ev.User)

	case RefreshFulfilled:
		if ev.User == nil || !s.IsAuthenticated {
			return s
		}
		next := s
		next.User = copyUser(ev.User)
		return next

	case LogoutRequested:
		if !s.IsAuthenticated {
			return s
		}
		next := s
		next.LogoutRequested = true
		return next

	case LogoutRejected:
		next := s
		next.LogoutRequested = false
		return next
	}

	return s
}

func anonymous() State {
	return State{IsInitialized: true}
}

func authenticated(user *model.UserProfile) State {
	return State{User: copyUser(user), IsAuthenticated: true, IsInitialized: true}
}

func copyUser(user *model.UserProfile) *model.UserProfile {
	if user == nil {
		return nil
	}
	cp := *user
	return &cp
}
