// Copyright 2026 The Fixpoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
)

// qrAlphabet excludes visually ambiguous characters (0/O, 1/I/l).
const qrAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// QRIDLength is the fixed length of the public lookup code.
const QRIDLength = 8

// maxQRIDAttempts bounds rejection sampling against collisions.
const maxQRIDAttempts = 20

// randomQRID draws one candidate code.
func randomQRID() (string, error) {
	buf := make([]byte, QRIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(qrAlphabet[int(c)%len(qrAlphabet)])
	}
	return b.String(), nil
}

// GenerateQRID draws codes until one is not yet taken in the registry.
func GenerateQRID(ctx context.Context, repo Repository) (string, error) {
	for attempt := 0; attempt < maxQRIDAttempts; attempt++ {
		code, err := randomQRID()
		if err != nil {
			return "", err
		}
		exists, err := repo.QRIDExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check qr_id collision: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unique qr_id after %d attempts", maxQRIDAttempts)
}

// Slug lowercases s and keeps only [a-z0-9_], so the derived tenant_id is
// a valid schema name.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	slug := b.String()
	if slug == "" {
		slug = "tenant"
	}
	// Schema names must not start with a digit.
	if slug[0] >= '0' && slug[0] <= '9' {
		slug = "t" + slug
	}
	return slug
}

// NewTenantID derives the partition key: slug(short_name) + "_" + random
// hex suffix, globally unique by construction.
func NewTenantID(shortName string) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return fmt.Sprintf("%s_%x", Slug(shortName), buf), nil
}
