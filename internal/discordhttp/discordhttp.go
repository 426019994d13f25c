/*
Package discordhttp builds HTTP clients that carry a Discord credential.

The credential is obtained from an oauth2.TokenSource, which lets the
caller decide where it comes from: a config file, the environment, or
an interactive prompt (see package prompt).  The source is consulted
once; the token is reused for the life of the client.

Discord does not use OAuth 2.0 bearer tokens for user and bot
credentials, so oauth2.Transport cannot be used directly.  User tokens
are sent as the bare Authorization header value; bot tokens are sent
as "Bot <token>".  A token's TokenType selects the form: empty for a
user token, anything else is used as the scheme.

The token is never logged.
*/
package discordhttp

import (
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// BotTokenType is the TokenType of bot credentials.
const BotTokenType = "Bot"

// Transport is an http.RoundTripper that adds the Authorization header
// taken from Source to every request before delegating to Base.
type Transport struct {
	Source oauth2.TokenSource

	// Base is the underlying RoundTripper.  If nil,
	// http.DefaultTransport is used at request time.
	Base http.RoundTripper
}

// RoundTrip authorizes and sends a clone of req.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.Source.Token()
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, errors.Wrap(err, "unable to obtain discord token")
	}
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", Authorization(tok))
	return t.base().RoundTrip(req2)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// Authorization returns the Authorization header value for tok.
func Authorization(tok *oauth2.Token) string {
	if tok.TokenType == "" {
		return tok.AccessToken
	}
	return tok.Type() + " " + tok.AccessToken
}

// StaticTokenSource returns a source that always yields token.  Pass
// BotTokenType as tokenType for bot credentials, "" for user tokens.
func StaticTokenSource(token, tokenType string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   tokenType,
	})
}

// New returns a new HTTP client that authenticates every request with
// the token from src.  A nil base means http.DefaultTransport.
func New(src oauth2.TokenSource, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{
		Source: oauth2.ReuseTokenSource(nil, src),
		Base:   base,
	}}
}
