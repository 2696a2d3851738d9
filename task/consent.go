package task

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/finbridge/finbridge/driver"
)

// UserConfigConsentID caches an established consent identifier between
// runs.
const UserConfigConsentID = "ConsentId"

// Consent establishes a Berlin-group account-information consent: it
// validates a cached consent, creates a new one when needed, and walks the
// SCA authorisation until the consent is usable.
type Consent struct {
	Session *HTTPSession
	// BaseURL prefixes the /consents endpoints.
	BaseURL string

	// ID is the established consent identifier, set by Establish.
	ID string
}

type consentAuthorisation struct {
	AuthorisationID string `json:"authorisationId"`
	SCAStatus       string `json:"scaStatus"`
	ChosenSCAMethod *struct {
		AuthenticationType string `json:"authenticationType"`
	} `json:"chosenScaMethod"`
	ChallengeData json.RawMessage `json:"challengeData"`
}

// Establish makes sure a valid consent covering iban exists, running the
// SCA authorisation if the bank requires one. The resulting consent id is
// cached in the user configuration.
func (c *Consent) Establish(rt *Runtime, iban string) error {
	if cached, ok := rt.UserConfig(UserConfigConsentID); ok && cached != "" {
		rt.Spinner("Checking existing consent...")
		valid, err := c.checkConsent(rt, cached, iban)
		if err != nil {
			return err
		}
		if valid {
			c.ID = cached
			return nil
		}
	}

	if err := c.createConsent(rt, iban); err != nil {
		return err
	}
	rt.SetUserConfig(UserConfigConsentID, c.ID)
	return nil
}

// checkConsent reports whether an existing consent is valid and covers
// accounts, balances and transactions for iban.
func (c *Consent) checkConsent(rt *Runtime, consentID, iban string) (bool, error) {
	if err := c.get("/consents/"+consentID); err != nil {
		return false, err
	}

	var res struct {
		ConsentStatus string                  `json:"consentStatus"`
		ValidUntil    string                  `json:"validUntil"`
		Access        map[string][]AccountRef `json:"access"`
	}
	if err := c.Session.JSON(&res); err != nil {
		return false, nil
	}
	if res.ConsentStatus != "valid" || res.Access == nil {
		return false, nil
	}

	for _, scope := range []string{"accounts", "balances", "transactions"} {
		covered := false
		for _, ref := range res.Access[scope] {
			if ref.IBAN == iban {
				covered = true
				break
			}
		}
		if !covered {
			return false, nil
		}
	}

	rt.Logger().Debug("existing consent is valid", "validUntil", res.ValidUntil)
	return true, nil
}

func (c *Consent) createConsent(rt *Runtime, iban string) error {
	rt.Spinner("Creating consent...")
	err := c.post("/consents", map[string]any{
		"access": map[string]any{
			"accounts": []AccountRef{{IBAN: iban}},
		},
		"recurringIndicator":       true,
		"validUntil":               "9999-12-31",
		"frequencyPerDay":          4,
		"combinedServiceIndicator": false,
	})
	if err != nil {
		return err
	}

	var res struct {
		ConsentID     string `json:"consentId"`
		ConsentStatus string `json:"consentStatus"`
	}
	if err := c.Session.JSON(&res); err != nil {
		return fmt.Errorf("%w: consent response: %v", ErrInvalidState, err)
	}

	c.ID = res.ConsentID
	switch res.ConsentStatus {
	case "valid":
		return nil
	case "received":
		return c.authorise(rt)
	}
	return fmt.Errorf("%w: consentStatus=%s", ErrInvalidState, res.ConsentStatus)
}

// authorise walks the SCA loop until the authorisation is exempted or
// finalised. OTP methods prompt the human for the challenge answer;
// PUSH_OTP polls while the human accepts in their banking app.
func (c *Consent) authorise(rt *Runtime) error {
	rt.Spinner("Creating authorisation...")
	if err := c.post("/consents/"+c.ID+"/authorisations", nil); err != nil {
		return err
	}

	var auth consentAuthorisation
	if err := c.Session.JSON(&auth); err != nil {
		return fmt.Errorf("%w: authorisation response: %v", ErrInvalidState, err)
	}

	path := "/consents/" + c.ID + "/authorisations/" + auth.AuthorisationID
	status := auth.SCAStatus
	authenticationType := ""
	if auth.ChosenSCAMethod != nil {
		authenticationType = auth.ChosenSCAMethod.AuthenticationType
	}

	for rt.Connected() {
		switch status {
		case "exempted", "finalised":
			return nil
		case "failed":
			return fmt.Errorf("%w: scaStatus=failed", ErrInvalidState)
		}

		answer, err := c.challenge(rt, authenticationType, auth.ChallengeData)
		if err != nil {
			return err
		}

		if answer != "" {
			err = c.put(path, map[string]string{"scaAuthenticationData": answer})
		} else {
			err = c.get(path)
		}
		if err != nil {
			return err
		}

		var res struct {
			SCAStatus string `json:"scaStatus"`
		}
		if err := c.Session.JSON(&res); err != nil {
			return fmt.Errorf("%w: scaStatus response: %v", ErrInvalidState, err)
		}
		status = res.SCAStatus
	}

	return driver.ErrConnectionClosed
}

// challenge collects the SCA answer for one authentication method; an
// empty answer means the caller should poll the authorisation instead.
func (c *Consent) challenge(rt *Runtime, authenticationType string, challengeData json.RawMessage) (string, error) {
	promptChallenge := func(title string, showData bool) (string, error) {
		form, err := rt.Prompt(title, "Auth", func(b *driver.Content) {
			if showData {
				b.Text("ChallengeData: " + string(challengeData))
			}
			b.Input("data", "Challenge")
		})
		if err != nil {
			return "", err
		}
		return form["data"], nil
	}

	switch authenticationType {
	case "SMS_OTP":
		return promptChallenge("Authorize SMS:", false)
	case "CHIP_OTP":
		return promptChallenge("Authorize CHIP:", true)
	case "PHOTO_OTP":
		return promptChallenge("Authorize PHOTO:", true)
	case "PUSH_OTP":
		rt.Spinner("Please accept on your app")
		if err := rt.Wait(waitUntilInterval); err != nil {
			return "", err
		}
		return "", nil
	}
	return "", fmt.Errorf("%w: authenticationType=%s", ErrUnsupportedType, authenticationType)
}

// HeaderHook returns a session header hook adding the PSU headers of the
// originating client and, once established, the Consent-ID.
func (c *Consent) HeaderHook(rt *Runtime) func(header http.Header, method string) {
	meta := rt.Meta()
	return func(header http.Header, _ string) {
		if c.ID != "" {
			header.Set("Consent-ID", c.ID)
		}
		if meta.IPAddress != "" {
			header.Set("PSU-IP-Address", meta.IPAddress)
		}
		if meta.IPPort != "" {
			header.Set("PSU-IP-Port", meta.IPPort)
		}
		if meta.UserAgent != "" {
			header.Set("PSU-User-Agent", meta.UserAgent)
		}
	}
}

func (c *Consent) get(path string) error {
	return c.checkStatus(c.Session.Get(c.BaseURL+path, nil))
}

func (c *Consent) post(path string, body any) error {
	return c.checkStatus(c.Session.PostJSON(c.BaseURL+path, body))
}

func (c *Consent) put(path string, body any) error {
	return c.checkStatus(c.Session.PutJSON(c.BaseURL+path, body))
}

// checkStatus turns 4xx responses into bad-request errors carrying the
// bank's tppMessages.
func (c *Consent) checkStatus(err error) error {
	if err != nil {
		return err
	}
	status := c.Session.StatusCode()
	if 400 <= status && status < 500 {
		var res struct {
			TPPMessages json.RawMessage `json:"tppMessages"`
		}
		c.Session.JSON(&res)
		return fmt.Errorf("%w: tppMessages: %s", ErrBadRequest, res.TPPMessages)
	}
	return nil
}
