package x

import (
	"context"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/provider"
)

// Provider authenticates from the session file, logging in with
// credentials only when no usable token is stored
type Provider struct {
	store *SessionStore
	creds Credentials
	opts  Options

	// fromStore is set while the current session came from the session file
	fromStore bool
	// skipStore ignores the session file after it was rejected
	skipStore bool
}

// NewProvider creates a provider.Provider backed by store
func NewProvider(store *SessionStore, creds Credentials, opts Options) *Provider {
	return &Provider{store: store, creds: creds, opts: opts.withDefaults()}
}

func (p *Provider) hasCredentials() bool {
	return p.creds.Username != "" && p.creds.Password != ""
}

// Authenticate implements provider.Provider
func (p *Provider) Authenticate(ctx context.Context) (provider.Session, error) {
	log := p.opts.Logger.WithField("component", "session")

	if !p.skipStore {
		token, err := p.store.Load()
		if err != nil {
			log.WithError(err).Warn("Ignoring unreadable session file")
		}
		if token != nil {
			log.InfoWithFields("Loaded stored session", map[string]interface{}{"path": p.store.Path()})
			p.fromStore = true
			return NewClient(token, p.opts), nil
		}
	}

	if !p.hasCredentials() {
		return nil, errs.NewAuth("no stored session and no login credentials configured", nil)
	}

	token, err := Login(ctx, p.creds, p.opts)
	if err != nil {
		return nil, err
	}
	p.fromStore = false
	if err := p.store.Save(token); err != nil {
		log.WithError(err).Warn("Failed to persist session")
	} else {
		p.skipStore = false
		log.InfoWithFields("Session saved", map[string]interface{}{"path": p.store.Path()})
	}
	return NewClient(token, p.opts), nil
}

// Discard implements provider.Refresher. A stored session is dropped only
// when credentials are available to replace it
func (p *Provider) Discard() bool {
	if !p.fromStore || !p.hasCredentials() {
		return false
	}
	log := p.opts.Logger.WithField("component", "session")
	if err := p.store.Delete(); err != nil {
		log.WithError(err).Warn("Failed to delete rejected session file")
	} else {
		log.InfoWithFields("Deleted rejected session", map[string]interface{}{"path": p.store.Path()})
	}
	p.fromStore = false
	p.skipStore = true
	return true
}
