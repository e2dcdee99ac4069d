package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
)

const DefaultExpiresIn = time.Hour

// Token is the on-disk token cache. Expiration is in epoch seconds.
type Token struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type,omitempty"`
	ExpiresIn    int64   `json:"expires_in"`
	Expiration   float64 `json:"expiration,omitempty"`
}

func (t *Token) ExpiresAt() time.Time {
	sec, frac := math.Modf(t.Expiration)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// DeriveExpiration sets Expiration to now+ExpiresIn, defaulting ExpiresIn to an hour.
func (t *Token) DeriveExpiration(now time.Time) {
	if t.ExpiresIn <= 0 {
		t.ExpiresIn = int64(DefaultExpiresIn.Seconds())
	}
	t.Expiration = float64(now.Add(time.Duration(t.ExpiresIn) * time.Second).Unix())
}

type TokenStore struct {
	path string
	log  *zap.Logger
}

func NewTokenStore(path string, log *zap.Logger) *TokenStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenStore{path: path, log: log}
}

func (s *TokenStore) Path() string {
	return s.path
}

// Load returns nil when the cache is missing or malformed, so callers start a fresh flow.
func (s *TokenStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("Token file not found.", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		s.log.Error("Token file is corrupted or malformed.", zap.String("path", s.path), zap.Error(err))
		return nil, nil
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		s.log.Error("Token file holds no tokens.", zap.String("path", s.path))
		return nil, nil
	}
	return &tok, nil
}

// Save rewrites the whole cache file.
func (s *TokenStore) Save(tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	s.log.Info("Access token saved.", zap.String("path", s.path))
	return nil
}
