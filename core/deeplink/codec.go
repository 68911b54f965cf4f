// Package deeplink encodes small structured payloads into opaque tokens that
// fit inside a Telegram start parameter or callback button, and decodes them
// back. Tokens are base64url over a delimited record, so they survive any
// client that mangles unusual characters.
package deeplink

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Kind tags what a decoded payload asks the bot to do.
type Kind string

const (
	// KindContentJoin requests delivery of a catalog entry's episodes.
	KindContentJoin Kind = "join"
	// KindRoute requests a generic command route on start.
	KindRoute Kind = "route"
)

const (
	// MaxTokenLen is the Telegram start-parameter limit for a single token.
	MaxTokenLen = 64

	fieldSep   = "|"
	fieldCount = 3
)

// Payload is the structured record carried by a deep link.
type Payload struct {
	Kind      Kind
	SubjectID string
	// Hint is an optional human-readable label; callers must pre-truncate
	// with FitHint so the encoded token stays within MaxTokenLen.
	Hint string
}

// DecodeError reports why a token could not be decoded. It is a typed error
// so callers can distinguish a malformed link from downstream failures.
type DecodeError struct {
	Reason string
	cause  error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("deeplink: %s: %v", e.Reason, e.cause)
	}
	return "deeplink: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.cause }

// Code returns a stable identifier for log schemas.
func (e *DecodeError) Code() string { return "DECODE_ERROR" }

func knownKind(k Kind) bool {
	switch k {
	case KindContentJoin, KindRoute:
		return true
	}
	return false
}

func validField(s string) bool {
	return !strings.Contains(s, fieldSep)
}

// Encode serializes the payload into an opaque URL-safe token.
func Encode(p Payload) (string, error) {
	if !knownKind(p.Kind) {
		return "", fmt.Errorf("deeplink: unknown kind %q", p.Kind)
	}
	if p.SubjectID == "" {
		return "", fmt.Errorf("deeplink: empty subject id")
	}
	if !validField(string(p.Kind)) || !validField(p.SubjectID) || !validField(p.Hint) {
		return "", fmt.Errorf("deeplink: field contains reserved delimiter")
	}
	raw := strings.Join([]string{string(p.Kind), p.SubjectID, p.Hint}, fieldSep)
	token := base64.RawURLEncoding.EncodeToString([]byte(raw))
	if len(token) > MaxTokenLen {
		return "", fmt.Errorf("deeplink: token length %d exceeds limit %d", len(token), MaxTokenLen)
	}
	return token, nil
}

// Decode parses a token produced by Encode. Any malformed input yields a
// *DecodeError; Decode never panics and never fabricates a payload.
func Decode(token string) (Payload, error) {
	if token == "" {
		return Payload{}, &DecodeError{Reason: "empty token"}
	}
	if len(token) > MaxTokenLen {
		return Payload{}, &DecodeError{Reason: "token too long"}
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, &DecodeError{Reason: "invalid encoding", cause: err}
	}
	parts := strings.Split(string(raw), fieldSep)
	if len(parts) != fieldCount {
		return Payload{}, &DecodeError{Reason: fmt.Sprintf("expected %d fields, got %d", fieldCount, len(parts))}
	}
	kind := Kind(parts[0])
	if !knownKind(kind) {
		return Payload{}, &DecodeError{Reason: fmt.Sprintf("unknown kind %q", parts[0])}
	}
	if parts[1] == "" {
		return Payload{}, &DecodeError{Reason: "empty subject id"}
	}
	return Payload{Kind: kind, SubjectID: parts[1], Hint: parts[2]}, nil
}

// FitHint truncates hint so that Encode(p) with the given kind and subject
// stays within MaxTokenLen. Truncation happens on whole bytes of the hint
// only; the delimiter layout is never split.
func FitHint(kind Kind, subjectID, hint string) string {
	// base64 output grows ceil(4n/3); work backwards from the token cap.
	overhead := len(string(kind)) + len(subjectID) + 2*len(fieldSep)
	budget := MaxTokenLen/4*3 - overhead
	if budget <= 0 {
		return ""
	}
	if len(hint) <= budget {
		return hint
	}
	return hint[:budget]
}
