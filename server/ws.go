package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finbridge/finbridge/driver"
	"github.com/finbridge/finbridge/internal/util"
	"github.com/finbridge/finbridge/task"
)

// runTask serves GET /task/{token} as a websocket upgrade: it consumes the
// parked descriptor, runs the workflow against the live session, parks the
// result, and redirects the client back to the caller's callback URI.
func (a *App) runTask(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	var opts []driver.SessionOption
	opts = append(opts, driver.WithSessionLogger(a.log))
	if a.pingInterval > 0 {
		opts = append(opts, driver.WithPingInterval(a.pingInterval))
	}
	session := driver.NewSession(r, conn, opts...)
	session.Spinner("Connected...")

	if err := a.runSession(r, session, chi.URLParam(r, "token")); err != nil {
		a.log.Error("task failed", "error", err)
		session.CloseWithError(err)
		return
	}
	session.Close()
}

func (a *App) runSession(r *http.Request, session *driver.Session, token string) error {
	var descriptor taskDescriptor
	found, err := a.handoff.TakeOnce(r.Context(), taskHandoffPrefix, token, &descriptor)
	if err != nil {
		return err
	}
	if !found {
		return task.ErrNotFound
	}

	conn, err := a.connectors.Find("", descriptor.Auth.ClientID, descriptor.Auth.ClientSecret)
	if err != nil {
		return err
	}

	var userConfig task.UserConfigStore
	if user := descriptor.Body.User; user != "" {
		userConfig = task.NewClientStore(session, task.ClientStoreName(user), conn.CipherForUser(user))
	}

	result, err := a.run(conn, session, &descriptor.Body, userConfig)
	if err != nil {
		return err
	}

	resultToken, err := a.handoff.Put(r.Context(), resultHandoffPrefix+descriptor.Auth.ClientID, result)
	if err != nil {
		return err
	}

	return session.Redirect(util.AddQuery(descriptor.Body.CallbackURI, map[string]string{
		"result": a.resultPathFor(resultToken),
	}))
}
