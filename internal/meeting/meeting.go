/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package meeting mints conference room references for bookings. The
// rooms live on an external conferencing handler; this package only
// produces identifiers under its URL space.
package meeting

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Reference identifies a conference room for one booking.
type Reference struct {
	ID         string
	URL        string
	Credential string
}

const credentialAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator mints references under a configured base URL.
type Generator struct {
	baseURL string
}

// NewGenerator returns a generator rooted at baseURL (e.g. "https://meet.jit.si").
func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// New mints a fresh room reference. IDs look like "interview-1a2b3c4d";
// collision risk across concurrent bookings is handled by the unique
// index on the booking's meeting id.
func (g *Generator) New() (Reference, error) {
	id := "interview-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	credential, err := randomCredential(6)
	if err != nil {
		return Reference{}, fmt.Errorf("generate credential: %w", err)
	}

	return Reference{
		ID:         id,
		URL:        g.baseURL + "/" + id,
		Credential: credential,
	}, nil
}

func randomCredential(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = credentialAlphabet[int(b)%len(credentialAlphabet)]
	}
	return string(out), nil
}
