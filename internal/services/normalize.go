package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/shared"
)

// Response is the canonical shape every auth response is reduced to.
//
// Marshalling a Response and normalizing it again yields the same Response.
type Response struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message,omitempty"`
	Principal         *models.Principal `json:"admin,omitempty"`
	AccessCredential  string            `json:"accessToken,omitempty"`
	RefreshCredential string            `json:"refreshToken,omitempty"`
}

// accessAliases are checked in order, first at the top level then under "data".
var accessAliases = []string{"accessToken", "token", "access_token"}

// knownFields are the top-level names that mark a body as an API envelope.
var knownFields = []string{"success", "message", "admin", "data", "accessToken", "token", "access_token", "refreshToken"}

// MalformedResponseError reports a body that is not a recognizable API envelope.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%v: %s", shared.ErrMalformedResponse, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return shared.ErrMalformedResponse }

func malformed(format string, args ...any) error {
	return &MalformedResponseError{Reason: fmt.Sprintf(format, args...)}
}

// wirePrincipal accepts every name the API has used for principal fields.
type wirePrincipal struct {
	ID          json.RawMessage `json:"id"`
	LegacyID    json.RawMessage `json:"_id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	FullName    string          `json:"fullName"`
	DisplayName string          `json:"displayName"`
	PhoneNumber string          `json:"phoneNumber"`
}

// Normalize reduces a raw API body to a [Response].
//
// Access credentials are taken from the first non-empty of accessToken, token and
// access_token, at the top level and then under data. A missing success field reads as false.
func Normalize(body []byte) (*Response, error) {
	fields, err := object(body)
	if err != nil {
		return nil, err
	}

	found := false
	for _, name := range knownFields {
		if _, ok := fields[name]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil, malformed("no recognizable fields")
	}

	var data map[string]json.RawMessage
	if raw, ok := fields["data"]; ok && kind(raw) == '{' {
		if data, err = object(raw); err != nil {
			return nil, err
		}
	}

	resp := &Response{}
	if err := field(fields, "success", 't', &resp.Success); err != nil {
		return nil, err
	}
	if err := field(fields, "message", '"', &resp.Message); err != nil {
		return nil, err
	}

	for _, scope := range []map[string]json.RawMessage{fields, data} {
		for _, name := range accessAliases {
			if resp.AccessCredential != "" {
				break
			}
			if err := field(scope, name, '"', &resp.AccessCredential); err != nil {
				return nil, err
			}
		}
		if resp.RefreshCredential == "" {
			if err := field(scope, "refreshToken", '"', &resp.RefreshCredential); err != nil {
				return nil, err
			}
		}
		if resp.Principal == nil {
			if resp.Principal, err = principal(scope); err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

// NormalizePrincipal decodes a principal object using the same field rules as [Normalize].
func NormalizePrincipal(raw []byte) (*models.Principal, error) {
	if kind(raw) != '{' {
		return nil, malformed("principal is not an object")
	}
	var w wirePrincipal
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, malformed("principal: %v", err)
	}

	p := &models.Principal{
		ID:          firstID(w.ID, w.LegacyID),
		Email:       w.Email,
		DisplayName: firstNonEmpty(w.Name, w.FullName, w.DisplayName, models.DefaultDisplayName),
		PhoneNumber: w.PhoneNumber,
	}
	return p, nil
}

func principal(scope map[string]json.RawMessage) (*models.Principal, error) {
	raw, ok := scope["admin"]
	if !ok || kind(raw) == 'n' {
		return nil, nil
	}
	return NormalizePrincipal(raw)
}

func object(raw []byte) (map[string]json.RawMessage, error) {
	if kind(raw) != '{' {
		return nil, malformed("body is not a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, malformed("%v", err)
	}
	return fields, nil
}

// field decodes scope[name] into dst when present and not null.
// want is the expected kind: '"' string, 't' boolean.
func field(scope map[string]json.RawMessage, name string, want byte, dst any) error {
	raw, ok := scope[name]
	if !ok {
		return nil
	}
	switch k := kind(raw); k {
	case 'n':
		return nil
	case want:
		if err := json.Unmarshal(raw, dst); err != nil {
			return malformed("%s: %v", name, err)
		}
		return nil
	default:
		return malformed("%s has unexpected type", name)
	}
}

// kind classifies a raw JSON value by its first byte.
// Booleans report 't', null reports 'n'.
func kind(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	switch raw[0] {
	case 'f':
		return 't'
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return '0'
	default:
		return raw[0]
	}
}

func firstID(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		switch kind(raw) {
		case '"':
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		case '0':
			return strings.TrimSpace(string(raw))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
