package task

import (
	"errors"
	"fmt"

	"github.com/finbridge/finbridge/internal/util"
)

// Connector configuration and user configuration keys of the OAuth helper.
const (
	ConfigOAuthClientID     = "OAuthClientId"
	ConfigOAuthClientSecret = "OAuthClientSecret"
	UserConfigRefreshToken  = "OAuthRefreshToken"
)

// OAuthConfigNames are the connector configuration entries the OAuth
// helper reads; workflows using it include them in their ConfigNames.
var OAuthConfigNames = []string{ConfigOAuthClientID, ConfigOAuthClientSecret}

// OAuth performs the authorization-code login against a bank's OAuth
// endpoint, preferring a cached refresh token and falling back to sending
// the human through the authorize redirect.
type OAuth struct {
	Session      *HTTPSession
	AuthorizeURL string
	TokenURL     string
	Scope        string

	clientID     string
	clientSecret string
}

const oauthStateSize = 32

// LoadConfig reads the OAuth client credentials from the connector
// configuration.
func (o *OAuth) LoadConfig(rt *Runtime) error {
	var err error
	if o.clientID, err = rt.Config(ConfigOAuthClientID); err != nil {
		return err
	}
	o.clientSecret, err = rt.Config(ConfigOAuthClientSecret)
	return err
}

func (o *OAuth) ClientID() string { return o.clientID }

// Login obtains a bearer token for the session. A cached refresh token is
// tried first; when the bank rejects it the cached token is dropped and
// the interactive authorize flow runs.
func (o *OAuth) Login(rt *Runtime) error {
	if refreshToken, ok := rt.UserConfig(UserConfigRefreshToken); ok && refreshToken != "" {
		err := o.token(rt, map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrInvalidState) {
			return err
		}
		rt.ClearUserConfig(UserConfigRefreshToken)
	}

	state, err := util.RandomHex(oauthStateSize)
	if err != nil {
		return err
	}

	authorizeURL := util.AddQuery(o.AuthorizeURL, map[string]string{
		"response_type": "code",
		"client_id":     o.clientID,
		"state":         state,
		"scope":         o.Scope,
		"redirect_uri":  rt.CallbackURI(),
	})

	reported, err := rt.Callback(authorizeURL, "Get Access")
	if err != nil {
		return err
	}
	if reported.Query().Get("state") != state {
		return fmt.Errorf("%w: OAuth state", ErrInvalidState)
	}

	rt.Spinner("Getting access_token...")
	return o.token(rt, map[string]string{
		"grant_type": "authorization_code",
		"code":       reported.Query().Get("code"),
	})
}

// token exchanges data for an access token, stores the rotated refresh
// token in the user configuration, and installs the bearer on the session.
func (o *OAuth) token(rt *Runtime, data map[string]string) error {
	form := map[string]string{
		"client_id":     o.clientID,
		"client_secret": o.clientSecret,
		"redirect_uri":  rt.CallbackURI(),
	}
	for k, v := range data {
		form[k] = v
	}

	if err := o.Session.PostForm(o.TokenURL, form); err != nil {
		return err
	}

	var res struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := o.Session.JSON(&res); err != nil {
		return fmt.Errorf("%w: OAuth token response: %v", ErrInvalidState, err)
	}
	if res.Error != "" {
		return fmt.Errorf("%w: OAuth error %s: %s", ErrInvalidState, res.Error, res.ErrorDescription)
	}
	if res.AccessToken == "" {
		return fmt.Errorf("%w: OAuth access_token is missing", ErrInvalidState)
	}

	rt.SetUserConfig(UserConfigRefreshToken, res.RefreshToken)
	o.Session.SetBearer(res.AccessToken)
	return nil
}
