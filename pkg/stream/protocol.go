package stream

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Sentinel separates the streamed partial text from the final payload.
const Sentinel = "[END]"

var (
	// ErrMissingSentinel is returned when a response ended without the
	// sentinel. The stream must not be interpreted as a result.
	ErrMissingSentinel = errors.New("stream ended without " + Sentinel + " sentinel")
	// ErrAborted is returned when the caller cancelled an in-flight call.
	ErrAborted = errors.New("stream aborted")
)

// envelope is the superjson wire shape: {"json": value, "meta": {...}}.
// An absent json member is an undefined result, distinct from null.
type envelope struct {
	JSON json.RawMessage `json:"json,omitempty"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// EncodePayload wraps v into the final payload envelope.
func EncodePayload(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode payload")
	}
	return json.Marshal(envelope{JSON: b})
}

// DecodePayload unwraps a final payload into out. An undefined payload leaves
// out untouched and reports defined=false.
func DecodePayload(b []byte, out interface{}) (defined bool, err error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return false, errors.Wrap(err, "could not decode payload envelope")
	}
	if len(env.JSON) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(env.JSON, out); err != nil {
		return true, errors.Wrap(err, "could not decode payload")
	}
	return true, nil
}

// Decoder reconstructs a streamed response on the client side. Bytes are
// written as they arrive; Partial is everything before the first sentinel.
// The payload is only available from Finish, once the stream has ended.
type Decoder struct {
	buf bytes.Buffer
}

func (d *Decoder) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

func (d *Decoder) sentinelIndex() int {
	return bytes.Index(d.buf.Bytes(), []byte(Sentinel))
}

// Partial returns the text streamed so far, excluding the sentinel and payload.
func (d *Decoder) Partial() string {
	b := d.buf.Bytes()
	if idx := d.sentinelIndex(); idx >= 0 {
		return string(b[:idx])
	}
	return string(b)
}

// Ended reports whether the sentinel has been received.
func (d *Decoder) Ended() bool {
	return d.sentinelIndex() >= 0
}

// Finish returns the raw payload after the sentinel. It must only be called
// once the stream is fully read.
func (d *Decoder) Finish() ([]byte, error) {
	idx := d.sentinelIndex()
	if idx < 0 {
		return nil, ErrMissingSentinel
	}
	return bytes.Clone(d.buf.Bytes()[idx+len(Sentinel):]), nil
}
