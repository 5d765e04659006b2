package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"furniture-dashboard/internal/model"
)

const (
	SeedEmail    = "admin@example.com"
	SeedPassword = "password"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errEmailTaken         = errors.New("email already used")
	errInvalidToken       = errors.New("invalid token")
)

type account struct {
	ID           string
	Profile      model.UserProfile
	PasswordHash string
	CreatedAt    time.Time
}

// Accounts keeps users in memory and signs the session tokens carried in the
// session cookie.
type Accounts struct {
	jwtSecret  []byte
	sessionTTL time.Duration
	bcryptCost int

	mu      sync.RWMutex
	byEmail map[string]account
	byID    map[string]account
	revoked map[string]struct{}
}

func NewAccounts(jwtSecret string, sessionTTL time.Duration, bcryptCost int) (*Accounts, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	a := &Accounts{
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		byEmail:    map[string]account{},
		byID:       map[string]account{},
		revoked:    map[string]struct{}{},
	}

	_, err := a.Register(model.RegisterRequest{
		Email:     SeedEmail,
		Username:  "admin",
		FirstName: "Admin",
		LastName:  "Example",
		Password:  SeedPassword,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Accounts) Login(email string, password string) (account, error) {
	a.mu.RLock()
	acc, exists := a.byEmail[normalizeEmail(email)]
	a.mu.RUnlock()
	if !exists {
		return account{}, errInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return account{}, errInvalidCredentials
	}

	return acc, nil
}

func (a *Accounts) Register(req model.RegisterRequest) (account, error) {
	key := normalizeEmail(req.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.bcryptCost)
	if err != nil {
		return account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.byEmail[key]; exists {
		return account{}, errEmailTaken
	}

	acc := account{
		ID: uuid.NewString(),
		Profile: model.UserProfile{
			Email:     key,
			Username:  strings.TrimSpace(req.Username),
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
		},
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	a.byEmail[key] = acc
	a.byID[acc.ID] = acc
	return acc, nil
}

func (a *Accounts) Issue(acc account) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(a.sessionTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   acc.ID,
		"email": acc.Profile.Email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
	})

	signed, err := token.SignedString(a.jwtSecret)
	return signed, expires, err
}

// Validate returns the account behind a session token.
func (a *Accounts) Validate(tokenString string) (account, string, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return a.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return account{}, "", errInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return account{}, "", errInvalidToken
	}
	subject, _ := claims["sub"].(string)
	tokenID, _ := claims["jti"].(string)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, revoked := a.revoked[tokenID]; revoked {
		return account{}, "", errInvalidToken
	}
	acc, exists := a.byID[subject]
	if !exists {
		return account{}, "", errInvalidToken
	}
	return acc, tokenID, nil
}

func (a *Accounts) Revoke(tokenID string) {
	if tokenID == "" {
		return
	}
	a.mu.Lock()
	a.revoked[tokenID] = struct{}{}
	a.mu.Unlock()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidCredentials), errors.Is(err, errInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
