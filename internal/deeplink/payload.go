package deeplink

import (
	"encoding/json"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

// Stage discriminates the two payload shapes a wallet app can send back.
type ResultStage string

const (
	ResultConnect ResultStage = "connect"
	ResultSign    ResultStage = "sign"
)

// ConnectPayload is the wallet's response to the connect deep link: its
// session handle and its ephemeral encryption public key, both needed to
// build the sign stage.
type ConnectPayload struct {
	PublicKey string `json:"public_key"`
	Session   string `json:"session"`
}

// SignPayload is the wallet's response to the sign-message deep link.
type SignPayload struct {
	Signature string `json:"signature"`
	PublicKey string `json:"public_key,omitempty"`
}

// Result is the classified form of a decrypted callback payload. Exactly one
// of Connect/Sign is set, matching Stage.
type Result struct {
	Stage   ResultStage
	Connect *ConnectPayload
	Sign    *SignPayload
}

// classifyPayload decides the payload shape once, at the deserialization
// boundary: a signature marks a sign result, session+public_key a connect
// result, anything else is malformed.
func classifyPayload(plaintext []byte) (*Result, error) {
	var raw struct {
		Signature string `json:"signature"`
		Session   string `json:"session"`
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return nil, apperrors.MalformedPayload("payload is not valid JSON")
	}

	switch {
	case raw.Signature != "":
		return &Result{
			Stage: ResultSign,
			Sign:  &SignPayload{Signature: raw.Signature, PublicKey: raw.PublicKey},
		}, nil
	case raw.Session != "" && raw.PublicKey != "":
		return &Result{
			Stage:   ResultConnect,
			Connect: &ConnectPayload{PublicKey: raw.PublicKey, Session: raw.Session},
		}, nil
	default:
		return nil, apperrors.MalformedPayload("payload matches neither connect nor sign shape")
	}
}
