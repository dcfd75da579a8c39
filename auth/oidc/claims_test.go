package oidc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenPayload_UserID(t *testing.T) {
	tests := []struct {
		name   string
		claims string
		want   string
	}{
		{"sub only", `{"sub":"s1"}`, "s1"},
		{"id wins over sub", `{"sub":"s1","id":"i1"}`, "i1"},
		{"userId wins over id", `{"sub":"s1","id":"i1","userId":"u1"}`, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p TokenPayload
			if err := json.Unmarshal([]byte(tt.claims), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := p.UserID(); got != tt.want {
				t.Errorf("UserID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenPayload_Unmarshal(t *testing.T) {
	var p TokenPayload
	raw := `{"sub":"s1","aud":["a","b"],"exp":1700000000,"scope":"openid  email","custom":"x"}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Permissions == nil || len(p.Permissions) != 0 {
		t.Errorf("absent permissions should decode as empty, got %#v", p.Permissions)
	}
	if p.Claims["custom"] != "x" {
		t.Errorf("raw claims not kept: %v", p.Claims)
	}
	if len(p.Audience) != 2 {
		t.Errorf("Audience = %v", p.Audience)
	}
	if p.ExpiresAt == nil || p.ExpiresAt.Unix() != 1700000000 {
		t.Errorf("ExpiresAt = %v", p.ExpiresAt)
	}
	if scopes := p.Scopes(); len(scopes) != 2 || !p.HasScope("email") || p.HasScope("profile") {
		t.Errorf("Scopes() = %v", scopes)
	}
}

func TestDecodeUnverified(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "s1", "nonce": "n1"})
	signed, err := tok.SignedString([]byte("any"))
	if err != nil {
		t.Fatal(err)
	}

	p, err := DecodeUnverified(signed)
	if err != nil {
		t.Fatalf("DecodeUnverified: %v", err)
	}
	if p.Subject != "s1" || p.Nonce != "n1" {
		t.Errorf("unexpected payload: %+v", p)
	}

	for _, bad := range []string{"", "a.b", "a.b.c.d", "!!.??.sig"} {
		if _, err := DecodeUnverified(bad); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("DecodeUnverified(%q) err = %v, want ErrMalformedToken", bad, err)
		}
	}
}
