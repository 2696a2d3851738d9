package server

import "github.com/finbridge/finbridge/task"

// Credentials identify a connector; the secret is only ever included in
// the create response.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// ConnectionInfo is one entry of the admin connection listing.
type ConnectionInfo struct {
	Credentials Credentials `json:"credentials"`
	Type        string      `json:"type"`
	Name        string      `json:"name,omitempty"`
}

type createConnectionRequest struct {
	Type   string            `json:"type"`
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
}

type connectionRequest struct {
	Credentials *Credentials      `json:"credentials"`
	Config      map[string]string `json:"config"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Message string `json:"message"`
}

// taskDescriptor is the handoff payload bridging task creation and the
// websocket run: the caller's credentials plus the request body.
type taskDescriptor struct {
	Auth Credentials  `json:"auth"`
	Body task.Request `json:"body"`
}
