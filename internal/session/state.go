package session

import "furniture-dashboard/internal/model"

type Phase string

const (
	PhaseUnresolved    Phase = "unresolved"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
)

// State mirrors the upstream session. User is set exactly when
// IsAuthenticated is true, and IsInitialized never goes back to false.
type State struct {
	User            *model.UserProfile
	IsAuthenticated bool
	IsInitialized   bool

	// LogoutRequested records that a logout was asked for and has not been
	// confirmed or rejected yet. It never changes IsAuthenticated.
	LogoutRequested bool
}

func (s State) Phase() Phase {
	switch {
	case !s.IsInitialized && !s.IsAuthenticated:
		return PhaseUnresolved
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

func (s State) View() model.SessionView {
	view := model.SessionView{
		IsAuthenticated: s.IsAuthenticated,
		IsInitialized:   s.IsInitialized,
		LogoutRequested: s.LogoutRequested,
	}
	if s.User != nil {
		user := *s.User
		view.User = &user
	}
	return view
}

func IsAuthenticated(s State) bool {
	return s.IsAuthenticated
}

func IsInitialized(s State) bool {
	return s.IsInitialized
}

// CurrentUser returns a copy of the signed-in user, or nil.
func CurrentUser(s State) *model.UserProfile {
	if s.User == nil {
		return nil
	}
	user := *s.User
	return &user
}
