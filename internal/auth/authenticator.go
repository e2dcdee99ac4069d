// Package auth keeps a Raindrop OAuth2 access token valid across runs.
//
// A cached, unexpired token is returned without touching the network. An
// expired one is refreshed, and a missing or unreadable cache starts the
// authorization code flow. Every refreshed or exchanged token is written back
// to the cache file.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// CodePrompter shows the authorization URL and returns what the user pasted back.
type CodePrompter interface {
	PromptCode(ctx context.Context, authURL string) (string, error)
}

type Authenticator struct {
	oauth  *oauth2.Config
	store  *TokenStore
	prompt CodePrompter
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthenticator(cfg config.RaindropConfig, store *TokenStore, prompt CodePrompter, client *http.Client, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:  store,
		prompt: prompt,
		client: client,
		log:    log,
		now:    time.Now,
	}
}

func (a *Authenticator) Authenticate(ctx context.Context) (*Token, error) {
	tok, err := a.store.Load()
	if err != nil {
		return nil, apperr.New(apperr.KindAuth, "load token cache", err)
	}
	if tok == nil {
		a.log.Info("No saved access token. Starting OAuth2 flow...")
		return a.Login(ctx)
	}

	if tok.Expiration == 0 {
		tok.DeriveExpiration(a.now())
		if err := a.store.Save(tok); err != nil {
			return nil, apperr.New(apperr.KindAuth, "save token cache", err)
		}
	}

	if tok.AccessToken != "" && a.now().Before(tok.ExpiresAt()) {
		a.log.Info("Using saved access token.")
		return tok, nil
	}

	a.log.Info("Access token expired. Refreshing...")
	return a.Refresh(ctx, tok.RefreshToken)
}

func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, apperr.New(apperr.KindAuth, "refresh access token", errors.New("no refresh token cached"))
	}

	src := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	ot, err := src.Token()
	if err != nil {
		a.log.Error("Failed to refresh access token", zap.Error(err))
		return nil, apperr.New(apperr.KindAuth, "refresh access token", err)
	}

	tok := a.fromOAuth(ot)
	if err := a.store.Save(tok); err != nil {
		return nil, apperr.New(apperr.KindAuth, "save token cache", err)
	}
	a.log.Info("Access token refreshed successfully.", zap.Int64("expires_in", tok.ExpiresIn))
	return tok, nil
}

// Login runs the authorization code flow regardless of the cache state.
func (a *Authenticator) Login(ctx context.Context) (*Token, error) {
	if a.prompt == nil {
		return nil, apperr.New(apperr.KindAuth, "authorize", errors.New("no cached token and no interactive prompt available; run the login command"))
	}

	state := uuid.NewString()
	input, err := a.prompt.PromptCode(ctx, a.oauth.AuthCodeURL(state))
	if err != nil {
		return nil, apperr.New(apperr.KindAuth, "read authorization code", err)
	}
	code, err := ParseCode(input, state)
	if err != nil {
		return nil, apperr.New(apperr.KindAuth, "read authorization code", err)
	}

	ot, err := a.oauth.Exchange(a.clientContext(ctx), code)
	if err != nil {
		a.log.Error("Failed to exchange authorization code", zap.Error(err))
		return nil, apperr.New(apperr.KindAuth, "exchange authorization code", err)
	}

	tok := a.fromOAuth(ot)
	if err := a.store.Save(tok); err != nil {
		return nil, apperr.New(apperr.KindAuth, "save token cache", err)
	}
	a.log.Info("Authorization complete.", zap.Int64("expires_in", tok.ExpiresIn))
	return tok, nil
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	if a.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}

func (a *Authenticator) fromOAuth(ot *oauth2.Token) *Token {
	tok := &Token{
		AccessToken:  ot.AccessToken,
		RefreshToken: ot.RefreshToken,
		TokenType:    ot.TokenType,
		ExpiresIn:    expiresIn(ot),
	}
	tok.DeriveExpiration(a.now())
	return tok
}

func expiresIn(ot *oauth2.Token) int64 {
	switch v := ot.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if !ot.Expiry.IsZero() {
		return int64(time.Until(ot.Expiry).Round(time.Second).Seconds())
	}
	return 0
}
