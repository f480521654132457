package web

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v4"
)

// ContentType is the MIME type of the wire envelopes.
const ContentType = "application/x-msgpack"

// Outcome values carried in a response envelope.
const (
	OutcomeResolved = "resolved"
	OutcomePending  = "pending"
	OutcomeError    = "error"
)

// RequestEnvelope is the wire form of one invocation.
type RequestEnvelope struct {
	ID         string        `msgpack:"id"`
	Interface  string        `msgpack:"interface"`
	Operation  string        `msgpack:"operation"`
	Parameters []interface{} `msgpack:"parameters"`
}

// ResponseEnvelope is the wire form of one operation outcome. Outcome selects
// which of the remaining fields are meaningful: Value for resolved, Error for
// error, RetryAfterMS (optionally) for pending.
type ResponseEnvelope struct {
	ID           string      `msgpack:"id"`
	Outcome      string      `msgpack:"outcome"`
	Value        interface{} `msgpack:"value,omitempty"`
	Error        string      `msgpack:"error,omitempty"`
	RetryAfterMS int64       `msgpack:"retry_after_ms,omitempty"`
}

func encodeRequest(w io.Writer, env RequestEnvelope) error {
	if err := msgpack.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("could not encode request envelope: %w", err)
	}
	return nil
}

func decodeRequest(r io.Reader) (RequestEnvelope, error) {
	var env RequestEnvelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return RequestEnvelope{}, fmt.Errorf("could not decode request envelope: %w", err)
	}
	return env, nil
}

func encodeResponse(w io.Writer, env ResponseEnvelope) error {
	if err := msgpack.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("could not encode response envelope: %w", err)
	}
	return nil
}

func decodeResponse(r io.Reader) (ResponseEnvelope, error) {
	var env ResponseEnvelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return ResponseEnvelope{}, fmt.Errorf("could not decode response envelope: %w", err)
	}
	return env, nil
}
