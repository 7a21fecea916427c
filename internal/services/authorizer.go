package services

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// CredentialSource supplies the current access credential. "" means none.
type CredentialSource interface {
	AccessCredential() string
}

// CredentialFunc adapts a function to [CredentialSource].
type CredentialFunc func() string

func (f CredentialFunc) AccessCredential() string { return f() }

type credentialKey struct{}

// WithCredential returns a context whose requests carry token instead of the session's credential.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

// Authorizer is an [http.RoundTripper] that attaches the bearer credential to every request.
//
// A request without a resolvable credential is sent as is; rejecting it is the server's job.
type Authorizer struct {
	Source CredentialSource
	Base   http.RoundTripper
}

// NewAuthorizer wraps base, defaulting to [http.DefaultTransport].
func NewAuthorizer(src CredentialSource, base http.RoundTripper) *Authorizer {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Authorizer{Source: src, Base: base}
}

// RoundTrip implements [http.RoundTripper].
func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return a.Base.RoundTrip(req)
	}

	tok := a.token(req.Context())
	if tok == nil || tok.AccessToken == "" {
		return a.Base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	tok.SetAuthHeader(r)
	return a.Base.RoundTrip(r)
}

// token resolves the context override first, then the source.
func (a *Authorizer) token(ctx context.Context) *oauth2.Token {
	if ts, ok := ctx.Value(credentialKey{}).(oauth2.TokenSource); ok {
		if tok, err := ts.Token(); err == nil {
			return tok
		}
	}
	if a.Source == nil {
		return nil
	}
	if access := a.Source.AccessCredential(); access != "" {
		return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	}
	return nil
}
