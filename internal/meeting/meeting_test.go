/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package meeting

import (
	"strings"
	"testing"
)

func TestGeneratorNew(t *testing.T) {
	gen := NewGenerator("https://meet.example.com/")

	ref, err := gen.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !strings.HasPrefix(ref.ID, "interview-") {
		t.Errorf("ID = %q, want interview- prefix", ref.ID)
	}
	suffix := strings.TrimPrefix(ref.ID, "interview-")
	if len(suffix) != 8 {
		t.Errorf("ID suffix %q, want 8 chars", suffix)
	}
	for _, c := range suffix {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("ID suffix %q contains non-hex char %q", suffix, c)
		}
	}

	if ref.URL != "https://meet.example.com/"+ref.ID {
		t.Errorf("URL = %q, want base joined with ID", ref.URL)
	}
	if len(ref.Credential) != 6 {
		t.Errorf("Credential length = %d, want 6", len(ref.Credential))
	}
}

func TestGeneratorNewUnique(t *testing.T) {
	gen := NewGenerator("https://meet.example.com")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref, err := gen.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if seen[ref.ID] {
			t.Fatalf("duplicate meeting id %q after %d generations", ref.ID, i)
		}
		seen[ref.ID] = true
	}
}
