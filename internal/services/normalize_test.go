package services

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/apostle/internal/shared"
)

func TestNormalize(t *testing.T) {
	t.Run("access credential candidates", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"accessToken", `{"success":true,"accessToken":"T"}`},
			{"token", `{"success":true,"token":"T"}`},
			{"access_token", `{"success":true,"access_token":"T"}`},
			{"data.accessToken", `{"success":true,"data":{"accessToken":"T"}}`},
			{"data.token", `{"success":true,"data":{"token":"T"}}`},
			{"data.access_token", `{"success":true,"data":{"access_token":"T"}}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := Normalize([]byte(tt.body))
				if err != nil {
					t.Fatalf("Normalize failed: %v", err)
				}
				if resp.AccessCredential != "T" {
					t.Errorf("expected access credential T, got %q", resp.AccessCredential)
				}
			})
		}
	})

	t.Run("precedence", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{"accessToken over token", `{"token":"B","accessToken":"A"}`, "A"},
			{"token over access_token", `{"access_token":"C","token":"B"}`, "B"},
			{"top level over data", `{"access_token":"C","data":{"accessToken":"A"}}`, "C"},
			{"empty alias skipped", `{"accessToken":"","token":"B"}`, "B"},
			{"null alias skipped", `{"accessToken":null,"data":{"token":"D"}}`, "D"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := Normalize([]byte(tt.body))
				if err != nil {
					t.Fatalf("Normalize failed: %v", err)
				}
				if resp.AccessCredential != tt.want {
					t.Errorf("expected %q, got %q", tt.want, resp.AccessCredential)
				}
			})
		}
	})

	t.Run("refresh credential", func(t *testing.T) {
		resp, _ := Normalize([]byte(`{"refreshToken":"R"}`))
		if resp.RefreshCredential != "R" {
			t.Errorf("expected R, got %q", resp.RefreshCredential)
		}

		resp, _ = Normalize([]byte(`{"data":{"refreshToken":"R2"}}`))
		if resp.RefreshCredential != "R2" {
			t.Errorf("expected R2, got %q", resp.RefreshCredential)
		}
	})

	t.Run("success defaults to false", func(t *testing.T) {
		resp, err := Normalize([]byte(`{"message":"hello"}`))
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if resp.Success {
			t.Error("expected success=false when absent")
		}
		if resp.Message != "hello" {
			t.Errorf("expected message, got %q", resp.Message)
		}
	})

	t.Run("principal", func(t *testing.T) {
		tests := []struct {
			name      string
			body      string
			wantID    string
			wantName  string
			wantPhone string
		}{
			{"canonical", `{"admin":{"id":"1","email":"a@x","name":"Ann","phoneNumber":"555"}}`, "1", "Ann", "555"},
			{"legacy id", `{"admin":{"_id":"abc","email":"a@x"}}`, "abc", "Admin", ""},
			{"numeric id", `{"admin":{"id":7}}`, "7", "Admin", ""},
			{"legacy fullName", `{"admin":{"id":"1","fullName":"Full"}}`, "1", "Full", ""},
			{"name over fullName", `{"admin":{"id":"1","name":"N","fullName":"F"}}`, "1", "N", ""},
			{"under data", `{"data":{"admin":{"id":"2","name":"D"}}}`, "2", "D", ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := Normalize([]byte(tt.body))
				if err != nil {
					t.Fatalf("Normalize failed: %v", err)
				}
				if resp.Principal == nil {
					t.Fatal("expected principal")
				}
				if resp.Principal.ID != tt.wantID {
					t.Errorf("expected id %q, got %q", tt.wantID, resp.Principal.ID)
				}
				if resp.Principal.DisplayName != tt.wantName {
					t.Errorf("expected name %q, got %q", tt.wantName, resp.Principal.DisplayName)
				}
				if resp.Principal.PhoneNumber != tt.wantPhone {
					t.Errorf("expected phone %q, got %q", tt.wantPhone, resp.Principal.PhoneNumber)
				}
			})
		}

		t.Run("null admin", func(t *testing.T) {
			resp, err := Normalize([]byte(`{"success":true,"admin":null}`))
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if resp.Principal != nil {
				t.Errorf("expected nil principal, got %+v", resp.Principal)
			}
		})
	})

	t.Run("malformed", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"empty", ``},
			{"html", `<html>502 Bad Gateway</html>`},
			{"array", `[1,2,3]`},
			{"string", `"ok"`},
			{"no known fields", `{"foo":"bar"}`},
			{"success is a string", `{"success":"yes"}`},
			{"message is a number", `{"success":false,"message":42}`},
			{"token is an object", `{"accessToken":{"value":"T"}}`},
			{"admin is a string", `{"admin":"root"}`},
			{"broken json", `{"success":true`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Normalize([]byte(tt.body))
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, shared.ErrMalformedResponse) {
					t.Errorf("expected ErrMalformedResponse, got %v", err)
				}
				var mErr *MalformedResponseError
				if !errors.As(err, &mErr) {
					t.Errorf("expected *MalformedResponseError, got %T", err)
				}
			})
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		bodies := []string{
			`{"success":true,"accessToken":"T1","admin":{"id":"1","email":"a@x","name":"Ann","phoneNumber":"1"}}`,
			`{"success":true,"token":"T2","refreshToken":"R"}`,
			`{"success":true,"data":{"access_token":"T3","admin":{"_id":"9","fullName":"Legacy"}}}`,
			`{"success":false,"message":"bad credentials"}`,
			`{"message":"no success field"}`,
			`{"admin":{"id":5}}`,
			`{"success":true,"admin":{}}`,
			`{"data":[1,2]}`,
		}

		for _, body := range bodies {
			t.Run(body, func(t *testing.T) {
				once, err := Normalize([]byte(body))
				if err != nil {
					t.Fatalf("Normalize failed: %v", err)
				}

				encoded, err := json.Marshal(once)
				if err != nil {
					t.Fatalf("marshal failed: %v", err)
				}

				twice, err := Normalize(encoded)
				if err != nil {
					t.Fatalf("second Normalize failed on %s: %v", encoded, err)
				}
				if !reflect.DeepEqual(once, twice) {
					t.Errorf("not idempotent:\n once: %+v\ntwice: %+v", once, twice)
				}
			})
		}
	})
}
