// Command devtoken mints a bearer token for local testing of the ranking API.
//
//	JWT_SECRET=... devtoken -sub <profile-id> [-ttl 1h]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/onnwee/rendezvous/internal/auth"
	"github.com/onnwee/rendezvous/internal/config"
)

var (
	errMissingSubject = errors.New("-sub is required")
	errInvalidTTL     = errors.New("-ttl must be positive")
)

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, stdout io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	subject := fs.String("sub", "", "profile ID to put in the token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *subject == "" {
		return errMissingSubject
	}
	if *ttl <= 0 {
		return errInvalidTTL
	}
	secret := getenv("JWT_SECRET")
	if secret == "" {
		return config.ErrMissingJWTSecret
	}
	if len(secret) < config.MinJWTSecretLength {
		return config.ErrWeakJWTSecret
	}

	token, err := auth.NewJWTService(secret).Issue(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
