// Package session issues and verifies the tokens the desktop app holds after
// a successful login decision.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lawdesk/lawdesk/internal/config"
	"github.com/lawdesk/lawdesk/internal/credcache"
	"github.com/lawdesk/lawdesk/internal/identity"
)

var ErrInvalidToken = errors.New("invalid token")

// Service signs HS256 token pairs. Offline logins get a local access token
// only; refreshing requires the hosted provider, so no refresh token is
// issued for them.
type Service struct {
	cfg   config.Config
	cache credcache.Store
}

// NewService builds a session service.
func NewService(cfg config.Config, cache credcache.Store) *Service {
	return &Service{cfg: cfg, cache: cache}
}

// TokenPair is the login response token material.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID       string
	LoginKey     string
	OfflineLogin bool
}

// Issue creates the token pair for an authenticated identity.
func (s *Service) Issue(id identity.Identity, offlineLogin bool) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(s.cfg.AccessTokenTTL)

	access, err := s.sign(id, offlineLogin, s.cfg.JWTSecret, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}

	pair := TokenPair{
		AccessToken: access,
		ExpiresIn:   int64(time.Until(accessExp).Seconds()),
	}

	if !offlineLogin {
		refresh, err := s.sign(id, false, s.cfg.RefreshSecret, now, now.Add(s.cfg.RefreshTokenTTL))
		if err != nil {
			return TokenPair{}, err
		}
		pair.RefreshToken = refresh
	}

	return pair, nil
}

func (s *Service) sign(id identity.Identity, offlineLogin bool, secret string, now, exp time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.ID,
		"key": id.LoginKey,
		"ofl": offlineLogin,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	return token.SignedString([]byte(secret))
}

// Verify parses and validates an access token.
func (s *Service) Verify(tokenStr string) (Claims, error) {
	return s.verify(tokenStr, s.cfg.JWTSecret)
}

// Refresh validates a refresh token and issues a new access token.
func (s *Service) Refresh(refreshToken string) (string, int64, error) {
	claims, err := s.verify(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, ErrInvalidToken
	}

	now := time.Now()
	exp := now.Add(s.cfg.AccessTokenTTL)
	access, err := s.sign(identity.Identity{ID: claims.UserID, LoginKey: claims.LoginKey}, false, s.cfg.JWTSecret, now, exp)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout sets the device's logged-out marker. The credential cache itself is
// never erased, so offline re-login remains possible after logout.
func (s *Service) Logout() error {
	return s.cache.SetLoggedOut(true)
}

func (s *Service) verify(tokenStr, secret string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	key, _ := mapClaims["key"].(string)
	ofl, _ := mapClaims["ofl"].(bool)

	return Claims{UserID: sub, LoginKey: key, OfflineLogin: ofl}, nil
}
