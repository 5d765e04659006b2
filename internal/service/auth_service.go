package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/model"
	"furniture-dashboard/internal/session"
	"furniture-dashboard/internal/validation"
	"furniture-dashboard/pkg/apierror"
)

const whoAmIEndpoint = "users/me"

var authTags = []cache.Tag{cache.TagAuth, cache.TagUser}

// AuthService drives the session store from the upstream auth endpoints.
type AuthService struct {
	api    apiclient.Doer
	store  *session.Store
	cache  *cache.Cache
	events event.Publisher
	logger *slog.Logger

	bootOnce sync.Once
}

func NewAuthService(api apiclient.Doer, store *session.Store, c *cache.Cache, events event.Publisher, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{api: api, store: store, cache: c, events: events, logger: logger}
}

func (s *AuthService) Session() session.State {
	return s.store.State()
}

// Bootstrap resolves the session with a single who-am-i request. Later calls
// return the current state without touching the network; a failure is not
// retried.
func (s *AuthService) Bootstrap(ctx context.Context) session.State {
	s.bootOnce.Do(func() {
		if _, err := s.cache.Query(ctx, s.WhoAmIQuery()); err != nil {
			s.logger.DebugContext(ctx, "session resolved as anonymous", "error", err)
		}
	})
	return s.store.State()
}

// WhoAmIQuery is the cache query behind the current user. Answers that are
// still current when they land are dispatched to the session store.
func (s *AuthService) WhoAmIQuery() cache.Query {
	return cache.Query{
		Endpoint: whoAmIEndpoint,
		Tags:     authTags,
		Fetch:    s.fetchWhoAmI,
		Settled:  s.whoAmISettled,
	}
}

func (s *AuthService) WhoAmI(ctx context.Context) (model.UserProfile, error) {
	snap, err := s.cache.Query(ctx, s.WhoAmIQuery())
	if err != nil {
		return model.UserProfile{}, err
	}
	user, _ := snap.Data.(model.UserProfile)
	return user, nil
}

func (s *AuthService) SubscribeWhoAmI() *cache.Subscription {
	return s.cache.Subscribe(s.WhoAmIQuery())
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (session.State, error) {
	if err := validation.Struct(req); err != nil {
		return s.store.State(), err
	}

	resp, err := s.authenticate(ctx, "/auth/login", req)
	if err != nil {
		return s.store.State(), formError(err, "Invalid email or password")
	}

	return s.signedIn(ctx, session.LoginFulfilled, resp), nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (session.State, error) {
	if err := validation.Struct(req); err != nil {
		return s.store.State(), err
	}

	resp, err := s.authenticate(ctx, "/auth/register", req)
	if err != nil {
		return s.store.State(), formError(err, "Registration failed")
	}

	return s.signedIn(ctx, session.RegisterFulfilled, resp), nil
}

// Logout records the intent first and flips the session only once the
// upstream confirms. A rejected logout keeps the session and reports
// Confirmed=false.
func (s *AuthService) Logout(ctx context.Context) model.LogoutResult {
	s.store.Dispatch(session.Event{Type: session.LogoutRequested})

	_, err := s.cache.Mutate(ctx, authTags, func(ctx context.Context) (any, error) {
		return nil, s.api.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	})
	if err != nil && apierror.IsKind(err, apierror.KindUnauthorized) {
		// The upstream session is already gone.
		s.store.Dispatch(session.Event{Type: session.LogoutFulfilled})
		return model.LogoutResult{LoggedOut: true, Confirmed: true}
	}
	if err != nil {
		s.store.Dispatch(session.Event{Type: session.LogoutRejected})

		message := apierror.MessageOr(err, "The server could not confirm the logout")
		s.logger.WarnContext(ctx, "logout rejected", "error", err)
		s.events.Publish(event.TypeAlert, event.Alert{Level: "error", Title: "Logout failed", Message: message})
		return model.LogoutResult{LoggedOut: true, Confirmed: false, Message: message}
	}

	s.store.Dispatch(session.Event{Type: session.LogoutFulfilled})
	return model.LogoutResult{LoggedOut: true, Confirmed: true}
}

func (s *AuthService) Refresh(ctx context.Context) (session.State, error) {
	var resp model.AuthResponse
	if err := s.api.Do(ctx, http.MethodPost, "/auth/refresh", nil, &resp); err != nil {
		return s.store.State(), formError(err, "Session could not be refreshed")
	}

	return s.store.Dispatch(session.Event{Type: session.RefreshFulfilled, User: resp.User}), nil
}

func (s *AuthService) authenticate(ctx context.Context, path string, body any) (model.AuthResponse, error) {
	result, err := s.cache.Mutate(ctx, authTags, func(ctx context.Context) (any, error) {
		var resp model.AuthResponse
		if err := s.api.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return model.AuthResponse{}, err
	}
	return result.(model.AuthResponse), nil
}

// signedIn applies a successful login or register and loads the fresh
// profile with exactly one who-am-i request.
func (s *AuthService) signedIn(ctx context.Context, evType session.EventType, resp model.AuthResponse) session.State {
	s.store.Dispatch(session.Event{Type: evType, User: resp.User})

	if _, err := s.cache.Query(ctx, s.WhoAmIQuery()); err != nil {
		s.logger.WarnContext(ctx, "profile refresh after sign-in failed", "error", err)
	}
	return s.store.State()
}

func (s *AuthService) fetchWhoAmI(ctx context.Context) (any, error) {
	var body whoAmIResponse
	if err := s.api.Do(ctx, http.MethodGet, "/"+whoAmIEndpoint, nil, &body); err != nil {
		return nil, err
	}

	user := body.profile()
	if user == nil {
		return nil, apierror.Server(http.StatusBadGateway, "")
	}
	return *user, nil
}

func (s *AuthService) whoAmISettled(data any, err error) {
	user, ok := data.(model.UserProfile)
	if err != nil || !ok {
		s.store.Dispatch(session.Event{Type: session.WhoAmIRejected})
		return
	}
	s.store.Dispatch(session.Event{Type: session.WhoAmIFulfilled, User: &user})
}

// whoAmIResponse accepts {"data": user}, {"user": user} and a bare user.
type whoAmIResponse struct {
	Data *model.UserProfile `json:"data"`
	User *model.UserProfile `json:"user"`
	model.UserProfile
}

func (r whoAmIResponse) profile() *model.UserProfile {
	switch {
	case r.Data != nil:
		return r.Data
	case r.User != nil:
		return r.User
	case r.Email != "":
		user := r.UserProfile
		return &user
	}
	return nil
}

// formError keeps the normalised error but replaces a missing or generic
// message with the form's own wording.
func formError(err error, fallback string) error {
	apiErr := apierror.From(err)
	if apiErr.Kind == apierror.KindValidation && len(apiErr.FieldErrors) > 0 {
		return apiErr
	}

	out := *apiErr
	out.Message = apierror.MessageOr(err, fallback)
	return &out
}
