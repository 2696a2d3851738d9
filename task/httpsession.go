package task

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const sessionUserAgent = "Mozilla/5.0"

// HTTPSession is the stateful HTTP client workflows talk to their bank
// with: cookie jar, bearer authorization, optional TLS client certificate,
// and access to the last response. Redirects are never followed; banks'
// login flows carry state in Location headers.
type HTTPSession struct {
	client    *resty.Client
	transport *http.Transport

	baseURL     string
	bearer      string
	origin      string
	cert        *tls.Certificate
	certEnabled bool
	headerHook  func(header http.Header, method string)

	last *resty.Response
}

// NewHTTPSession builds a session with a fresh cookie jar.
func NewHTTPSession() *HTTPSession {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New with nil options cannot fail
		panic(err)
	}

	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	client := resty.New().
		SetCookieJar(jar).
		SetTransport(transport).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))

	return &HTTPSession{client: client, transport: transport}
}

// SetBaseURL sets the prefix for request paths starting with "/".
func (s *HTTPSession) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
}

// SetOrigin sets the Origin header sent with every request.
func (s *HTTPSession) SetOrigin(origin string) {
	s.origin = origin
}

// SetBearer sets the bearer token sent as Authorization on every request;
// empty clears it.
func (s *HTTPSession) SetBearer(token string) {
	s.bearer = token
}

// WithBearer runs fn with a temporary bearer token, restoring the previous
// one afterwards.
func (s *HTTPSession) WithBearer(token string, fn func() error) error {
	old := s.bearer
	s.bearer = token
	defer func() { s.bearer = old }()
	return fn()
}

// SetClientCertificate loads a TLS client certificate from PEM material.
// It is only presented once enabled.
func (s *HTTPSession) SetClientCertificate(certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("loading client certificate: %w", err)
	}
	s.cert = &cert
	s.applyCertificate()
	return nil
}

// EnableClientCertificate toggles presenting the loaded client
// certificate. Regulatory APIs require it while banks' OAuth endpoints
// reject it.
func (s *HTTPSession) EnableClientCertificate(enable bool) {
	s.certEnabled = enable
	s.applyCertificate()
}

func (s *HTTPSession) applyCertificate() {
	certs := []tls.Certificate(nil)
	if s.certEnabled && s.cert != nil {
		certs = []tls.Certificate{*s.cert}
	}
	s.transport.TLSClientConfig.Certificates = certs
	s.transport.CloseIdleConnections()
}

// SetHeaderHook installs a hook that may add headers to every outgoing
// request (consent ids, PSU headers).
func (s *HTTPSession) SetHeaderHook(fn func(header http.Header, method string)) {
	s.headerHook = fn
}

// Get performs a GET request with optional query parameters.
func (s *HTTPSession) Get(uri string, query map[string]string) error {
	return s.do(http.MethodGet, uri, func(req *resty.Request) {
		if query != nil {
			req.SetQueryParams(query)
		}
	})
}

// Delete performs a DELETE request.
func (s *HTTPSession) Delete(uri string) error {
	return s.do(http.MethodDelete, uri, nil)
}

// PostForm performs a POST with a url-encoded form body.
func (s *HTTPSession) PostForm(uri string, form map[string]string) error {
	return s.do(http.MethodPost, uri, func(req *resty.Request) {
		req.SetFormData(form)
	})
}

// PostJSON performs a POST with a JSON body; a nil body posts empty.
func (s *HTTPSession) PostJSON(uri string, body any) error {
	return s.do(http.MethodPost, uri, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json")
		if body != nil {
			req.SetBody(body)
		}
	})
}

// PutJSON performs a PUT with a JSON body.
func (s *HTTPSession) PutJSON(uri string, body any) error {
	return s.do(http.MethodPut, uri, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json")
		if body != nil {
			req.SetBody(body)
		}
	})
}

func (s *HTTPSession) do(method, uri string, build func(*resty.Request)) error {
	target, err := s.resolve(uri)
	if err != nil {
		return err
	}

	req := s.client.R().
		SetHeader("Accept", "application/json,*/*").
		SetHeader("Cache-Control", "no-cache").
		SetHeader("User-Agent", sessionUserAgent).
		SetHeader("X-Request-ID", uuid.NewString())
	if s.bearer != "" {
		req.SetHeader("Authorization", "Bearer "+s.bearer)
	}
	if s.origin != "" {
		req.SetHeader("Origin", s.origin)
	}
	if build != nil {
		build(req)
	}
	if s.headerHook != nil {
		s.headerHook(req.Header, method)
	}

	resp, err := req.Execute(method, target)
	if err != nil {
		return err
	}
	s.last = resp
	return nil
}

func (s *HTTPSession) resolve(uri string) (string, error) {
	if !strings.HasPrefix(uri, "/") {
		return uri, nil
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("%w: base URL", ErrMissingConfig)
	}
	return s.baseURL + uri, nil
}

// StatusCode returns the last response's status code, 0 when no request
// was made yet.
func (s *HTTPSession) StatusCode() int {
	if s.last == nil {
		return 0
	}
	return s.last.StatusCode()
}

// Header returns the last response's headers.
func (s *HTTPSession) Header() http.Header {
	if s.last == nil {
		return http.Header{}
	}
	return s.last.Header()
}

// Text returns the last response's body as a string.
func (s *HTTPSession) Text() string {
	if s.last == nil {
		return ""
	}
	return s.last.String()
}

// JSON decodes the last response's body into out.
func (s *HTTPSession) JSON(out any) error {
	if s.last == nil {
		return fmt.Errorf("%w: no response", ErrInvalidState)
	}
	return json.Unmarshal(s.last.Body(), out)
}

// BearerFromLocationFragment extracts access_token from the fragment of
// the last response's Location header and installs it as bearer token
// (implicit-grant style logins).
func (s *HTTPSession) BearerFromLocationFragment() error {
	location := s.Header().Get("Location")
	_, fragment, ok := strings.Cut(location, "#")
	if !ok {
		return fmt.Errorf("%w: location fragment", ErrInvalidState)
	}
	params, err := url.ParseQuery(fragment)
	if err != nil {
		return fmt.Errorf("%w: location fragment", ErrInvalidState)
	}
	token := params.Get("access_token")
	if token == "" {
		return fmt.Errorf("%w: access_token is missing", ErrInvalidState)
	}
	s.SetBearer(token)
	return nil
}
