package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/onnwee/rendezvous/internal/auth"
	"github.com/onnwee/rendezvous/internal/config"
)

const secret = "devtoken-test-secret-at-least-32-chars"

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-sub", "profile-42", "-ttl", "10m"}, env(map[string]string{"JWT_SECRET": secret}), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	claims, err := auth.NewJWTService(secret).ValidateToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("minted token does not validate: %v", err)
	}
	if claims.Subject != "profile-42" {
		t.Errorf("expected subject profile-42, got %s", claims.Subject)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr error
	}{
		{"missing subject", nil, map[string]string{"JWT_SECRET": secret}, errMissingSubject},
		{"zero ttl", []string{"-sub", "a", "-ttl", "0s"}, map[string]string{"JWT_SECRET": secret}, errInvalidTTL},
		{"missing secret", []string{"-sub", "a"}, nil, config.ErrMissingJWTSecret},
		{"weak secret", []string{"-sub", "a"}, map[string]string{"JWT_SECRET": "short"}, config.ErrWeakJWTSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, env(tt.env), &bytes.Buffer{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
