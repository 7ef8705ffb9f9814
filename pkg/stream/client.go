package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PartialFunc receives the whole partial text each time it grows.
type PartialFunc func(partial string)

// AbortError is returned when the caller cancelled a call. Partial is the
// last partial text observed. It matches ErrAborted with errors.Is.
type AbortError struct {
	Partial string
	Cause   error
}

func (a *AbortError) Error() string {
	return ErrAborted.Error() + ": " + a.Cause.Error()
}

func (a *AbortError) Is(target error) bool {
	return target == ErrAborted
}

func (a *AbortError) Unwrap() error {
	return a.Cause
}

// StatusError is a non-2xx response of the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (s *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", s.StatusCode, http.StatusText(s.StatusCode), s.Message)
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
		Dialer:     websocket.DefaultDialer,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (c *Client) streamURL(name string) string {
	return c.BaseURL + StreamPathPrefix + url.PathEscape(name)
}

func (c *Client) websocketURL(name string) (string, error) {
	u, err := url.Parse(c.BaseURL + WebsocketPathPrefix + url.PathEscape(name))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// receive feeds chunks into a Decoder, reporting partial text until the
// sentinel shows up, and returns the decoded payload once the stream ends.
type receiver struct {
	dec       Decoder
	onPartial PartialFunc
	last      string
	// done is set once the partial in front of the sentinel has been reported
	done bool
}

func (r *receiver) write(p []byte) {
	_, _ = r.dec.Write(p)
	if r.done || r.onPartial == nil {
		return
	}
	partial := r.dec.Partial()
	if r.dec.Ended() {
		r.done = true
	} else {
		partial = holdBackSentinel(partial)
	}
	if partial != r.last {
		r.last = partial
		r.onPartial(partial)
	}
}

// holdBackSentinel drops a trailing prefix of the sentinel that may still be
// completed by the next read, so reported partials only ever grow.
func holdBackSentinel(partial string) string {
	for n := len(Sentinel) - 1; n > 0; n-- {
		if strings.HasSuffix(partial, Sentinel[:n]) {
			return partial[:len(partial)-n]
		}
	}
	return partial
}

func (r *receiver) abort(ctx context.Context) error {
	return &AbortError{Partial: r.dec.Partial(), Cause: ctx.Err()}
}

func finish[O any](r *receiver) (O, error) {
	var out O
	payload, err := r.dec.Finish()
	if err != nil {
		return out, err
	}
	if _, err := DecodePayload(payload, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Call runs the operation d on the server over HTTP. onPartial may be nil.
func Call[I any, O any](ctx context.Context, c *Client, d Descriptor[I, O], in I, onPartial PartialFunc) (O, error) {
	var zero O

	body, err := json.Marshal(in)
	if err != nil {
		return zero, errors.Wrap(err, "could not encode input")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL(d.Name), bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return zero, &AbortError{Cause: ctx.Err()}
		}
		return zero, errors.Wrapf(err, "could not call %s", d.Name)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return zero, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	r := &receiver{onPartial: onPartial}
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			r.write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return zero, r.abort(ctx)
			}
			return zero, errors.Wrapf(err, "could not read %s stream", d.Name)
		}
	}

	log.Trace().Str("operation", d.Name).Msg("stream complete")
	return finish[O](r)
}

// CallWebsocket is Call over the websocket transport.
func CallWebsocket[I any, O any](ctx context.Context, c *Client, d Descriptor[I, O], in I, onPartial PartialFunc) (O, error) {
	var zero O

	u, err := c.websocketURL(d.Name)
	if err != nil {
		return zero, err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return zero, errors.Wrap(err, "could not encode input")
	}

	conn, resp, err := c.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		if ctx.Err() != nil {
			return zero, &AbortError{Cause: ctx.Err()}
		}
		if resp != nil {
			return zero, &StatusError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return zero, errors.Wrapf(err, "could not dial %s", u)
	}
	defer func() {
		_ = conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblocks ReadMessage below
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return zero, errors.Wrap(err, "could not send input")
	}

	r := &receiver{onPartial: onPartial}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return zero, r.abort(ctx)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return zero, errors.Errorf("%s failed: %s", d.Name, closeErr.Text)
			}
			return zero, errors.Wrapf(err, "could not read %s stream", d.Name)
		}
		r.write(msg)
	}

	return finish[O](r)
}

// Operations fetches the operation list of the server.
func (c *Client) Operations(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+OperationsPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var ret []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return nil, errors.Wrap(err, "could not decode operations")
	}
	return ret, nil
}
