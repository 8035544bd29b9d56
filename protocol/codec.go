package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode builds a wire frame from a message type and its payload. A nil
// payload produces an envelope with no data field (ping is the only such
// message in practice).
func Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}

	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// Decode parses a wire frame into an Envelope, leaving the payload raw.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if len(raw) == 0 {
		return env, fmt.Errorf("decode: empty frame")
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("decode: frame missing type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's data into the given payload type.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}

// MustEncode is Encode for payloads built by the server itself, where a
// marshal failure is a programming error.
func MustEncode(msgType string, payload any) []byte {
	raw, err := Encode(msgType, payload)
	if err != nil {
		panic(err)
	}
	return raw
}
