package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

// Transport moves snapshots and saves between a Syncer and the server.
type Transport interface {
	Fetch(ctx context.Context) (types.StateResponse, error)
	Save(ctx context.Context, out types.OutgoingBoard) (types.VersionedState, error)
}

// StatusError is a non-2xx response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("board server: %d %s", e.Status, e.Message)
}

// HTTPTransport talks to the /state endpoints.
type HTTPTransport struct {
	base   *url.URL
	hc     *http.Client
	userID string
	role   board.Role
}

func NewHTTPTransport(baseURL, userID string, role board.Role, hc *http.Client) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPTransport{base: u, hc: hc, userID: userID, role: role}, nil
}

// Header returns the session headers sent with every request.
func (t *HTTPTransport) Header() http.Header {
	h := http.Header{}
	h.Set("X-User-Id", t.userID)
	h.Set("X-User-Role", string(t.role))
	return h
}

// PushURL is the websocket address for the given push path.
func (t *HTTPTransport) PushURL(path string) string {
	u := *t.base
	u.Scheme = "ws"
	if t.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (t *HTTPTransport) Fetch(ctx context.Context) (types.StateResponse, error) {
	var out types.StateResponse
	err := t.do(ctx, http.MethodGet, nil, &out)
	return out, err
}

func (t *HTTPTransport) Save(ctx context.Context, ob types.OutgoingBoard) (types.VersionedState, error) {
	body, err := json.Marshal(types.SaveRequest{BoardState: ob})
	if err != nil {
		return types.VersionedState{}, err
	}
	var out types.VersionedState
	err = t.do(ctx, http.MethodPost, body, &out)
	return out, err
}

func (t *HTTPTransport) do(ctx context.Context, method string, body []byte, into any) error {
	req, err := http.NewRequestWithContext(ctx, method, t.base.String()+"/state", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header = t.Header()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := t.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var env types.Envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return &StatusError{Status: res.StatusCode, Message: "undecodable response"}
	}
	if res.StatusCode/100 != 2 || !env.Success {
		return &StatusError{Status: res.StatusCode, Message: env.Error}
	}
	if len(env.Data) == 0 {
		return errors.New("board server: empty data")
	}
	return json.Unmarshal(env.Data, into)
}
