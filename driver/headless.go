package driver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Headless is the no-interaction Driver: it reports a permanently connected
// client and fails loudly on any operation that would need a human, so that
// workflows requiring interaction cannot hang a synchronous request.
type Headless struct {
	meta Meta
	ctx  context.Context
}

var _ Driver = (*Headless)(nil)

// NewHeadless builds a headless driver for a synchronous request. The
// request context bounds Wait.
func NewHeadless(r *http.Request) *Headless {
	return &Headless{meta: MetaFromRequest(r), ctx: r.Context()}
}

func (h *Headless) Connected() bool { return true }

func (h *Headless) Meta() Meta { return h.meta }

func (h *Headless) Spinner(string) {}

func (h *Headless) Callback(string, string) (*url.URL, error) {
	return nil, fmt.Errorf("%w: callback requires a connected client", ErrHeadless)
}

func (h *Headless) Prompt(string, string, func(*Content)) (Form, error) {
	return nil, fmt.Errorf("%w: prompt requires a connected client", ErrHeadless)
}

func (h *Headless) PromptOption(string, []Option) (string, error) {
	return "", fmt.Errorf("%w: prompt requires a connected client", ErrHeadless)
}

func (h *Headless) Wait(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-h.ctx.Done():
		return ErrConnectionClosed
	}
}
