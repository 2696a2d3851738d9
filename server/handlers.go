package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finbridge/finbridge/connector"
	"github.com/finbridge/finbridge/driver"
	"github.com/finbridge/finbridge/task"
)

// createTask serves POST /. A body carrying a callbackUri cannot run
// synchronously: the descriptor is parked in the handoff store and the
// caller is redirected to the interactive task URI. Everything else runs
// headlessly within the request.
func (a *App) createTask(w http.ResponseWriter, r *http.Request) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		mapError(w, ErrUnauthorized)
		return
	}

	var body task.Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		mapError(w, fmt.Errorf("%w: %v", task.ErrBadRequest, err))
		return
	}

	if body.CallbackURI != "" {
		ok, err := a.connectors.CheckCredentials(clientID, clientSecret)
		if err != nil {
			mapError(w, err)
			return
		}
		if !ok {
			mapError(w, ErrForbidden)
			return
		}

		token, err := a.handoff.Put(r.Context(), taskHandoffPrefix, taskDescriptor{
			Auth: Credentials{ClientID: clientID, ClientSecret: clientSecret},
			Body: body,
		})
		if err != nil {
			mapError(w, err)
			return
		}
		http.Redirect(w, r, a.taskURI(token), http.StatusFound)
		return
	}

	conn, err := a.connectors.Find("", clientID, clientSecret)
	if err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			mapError(w, ErrForbidden)
			return
		}
		mapError(w, err)
		return
	}

	result, err := a.run(conn, driver.NewHeadless(r), &body, nil)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// result serves GET /result/{token}: a one-time fetch scoped to the
// authenticated connector.
func (a *App) result(w http.ResponseWriter, r *http.Request) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		mapError(w, ErrUnauthorized)
		return
	}
	if _, err := a.connectors.Find("", clientID, clientSecret); err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			mapError(w, ErrForbidden)
			return
		}
		mapError(w, err)
		return
	}

	var result task.Result
	found, err := a.handoff.TakeOnce(r.Context(), resultHandoffPrefix+clientID, chi.URLParam(r, "token"), &result)
	if err != nil {
		mapError(w, err)
		return
	}
	if !found {
		mapError(w, task.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// run executes one workflow run against a connection, keeping the usage
// timestamps current.
func (a *App) run(conn *connector.Connection, drv driver.Driver, body *task.Request, userConfig task.UserConfigStore) (*task.Result, error) {
	if err := conn.TouchUsed(); err != nil {
		return nil, err
	}

	w, err := a.registry.New(conn.Type())
	if err != nil {
		return nil, err
	}

	result, err := task.Run(w, task.Params{
		Connection:  conn,
		Driver:      drv,
		Request:     body,
		CallbackURI: a.callbackURI(),
		UserConfig:  userConfig,
		Logger:      a.log,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.TouchSucceeded(); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *App) admin(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := a.resolveUser(r)
	if err != nil {
		mapError(w, fmt.Errorf("%w: %v", ErrUnauthorized, err))
		return "", false
	}
	return user, true
}

func (a *App) listConnectors(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.admin(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.registry.List())
}

func (a *App) listConnections(w http.ResponseWriter, r *http.Request) {
	user, ok := a.admin(w, r)
	if !ok {
		return
	}

	infos, err := a.connectors.List(user)
	if err != nil {
		mapError(w, err)
		return
	}
	ret := make([]ConnectionInfo, 0, len(infos))
	for _, info := range infos {
		ret = append(ret, ConnectionInfo{
			Credentials: Credentials{ClientID: info.ClientID},
			Type:        info.Type,
			Name:        info.Name,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *App) createConnection(w http.ResponseWriter, r *http.Request) {
	user, ok := a.admin(w, r)
	if !ok {
		return
	}

	var req createConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mapError(w, fmt.Errorf("%w: %v", task.ErrBadRequest, err))
		return
	}
	if req.Type == "" {
		mapError(w, fmt.Errorf("%w: type is required", task.ErrBadRequest))
		return
	}

	conn, err := a.connectors.Create(user, req.Type, req.Name)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := conn.SetConfigs(req.Config); err != nil {
		mapError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]Credentials{
		"credentials": {
			ClientID:     conn.ClientID(),
			ClientSecret: conn.ClientSecret(),
		},
	})
}

func (a *App) setConnectionConfig(w http.ResponseWriter, r *http.Request) {
	user, ok := a.admin(w, r)
	if !ok {
		return
	}

	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mapError(w, fmt.Errorf("%w: %v", task.ErrBadRequest, err))
		return
	}
	if req.Credentials == nil || req.Credentials.ClientID == "" {
		mapError(w, fmt.Errorf("%w: credentials.clientId is required", task.ErrBadRequest))
		return
	}
	if req.Credentials.ClientSecret == "" {
		mapError(w, fmt.Errorf("%w: credentials.clientSecret is required", task.ErrBadRequest))
		return
	}

	conn, err := a.connectors.Find(user, req.Credentials.ClientID, req.Credentials.ClientSecret)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := conn.SetConfigs(req.Config); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *App) destroyConnection(w http.ResponseWriter, r *http.Request) {
	user, ok := a.admin(w, r)
	if !ok {
		return
	}

	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mapError(w, fmt.Errorf("%w: %v", task.ErrBadRequest, err))
		return
	}
	if req.Credentials == nil || req.Credentials.ClientID == "" {
		mapError(w, fmt.Errorf("%w: credentials.clientId is required", task.ErrBadRequest))
		return
	}

	if err := a.connectors.Destroy(user, req.Credentials.ClientID); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
