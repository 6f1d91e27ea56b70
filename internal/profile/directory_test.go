/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/models"
)

func openProfileTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Provider{}, &models.CandidateProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedDirectory(t *testing.T, db *gorm.DB) {
	t.Helper()

	providers := []models.Provider{
		{
			ID: "p-backend", Name: "Backend Pro", Email: "b@example.com",
			HandledDesignations: []string{"Backend Engineer", "Platform Engineer"},
			YearsOfExperience:   12, Active: true,
		},
		{
			ID: "p-mixed", Name: "Generalist", Email: "g@example.com",
			HandledDesignations: []string{"backend engineer", "Frontend Engineer"},
			YearsOfExperience:   7, Active: true,
		},
		{
			ID: "p-inactive", Name: "Gone", Email: "gone@example.com",
			HandledDesignations: []string{"Backend Engineer"},
			YearsOfExperience:   20, Active: false,
		},
		{
			ID: "p-frontend", Name: "Frontend Only", Email: "f@example.com",
			HandledDesignations: []string{"Frontend Engineer"},
			YearsOfExperience:   9, Active: true,
		},
	}
	if err := db.Create(&providers).Error; err != nil {
		t.Fatalf("seed providers: %v", err)
	}

	candidate := models.CandidateProfile{
		ID: "c1", Name: "Candidate", Email: "c1@example.com",
		Designation: "Backend Engineer",
	}
	if err := db.Create(&candidate).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
}

func TestListByDesignation(t *testing.T) {
	db := openProfileTestDB(t)
	seedDirectory(t, db)

	dir := NewDirectory(db, nil, nil, zerolog.Nop())

	// Lookup is case-insensitive both ways: query casing and stored casing.
	got, err := dir.ListByDesignation(context.Background(), "backend ENGINEER")
	if err != nil {
		t.Fatalf("ListByDesignation: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d providers, want 2", len(got))
	}
	// Ordered by experience.
	if got[0].ID != "p-backend" || got[1].ID != "p-mixed" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestListByDesignationRequiresValue(t *testing.T) {
	db := openProfileTestDB(t)
	dir := NewDirectory(db, nil, nil, zerolog.Nop())

	if _, err := dir.ListByDesignation(context.Background(), "  "); !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestForCandidateUsesOwnDesignation(t *testing.T) {
	db := openProfileTestDB(t)
	seedDirectory(t, db)

	dir := NewDirectory(db, nil, nil, zerolog.Nop())

	got, err := dir.ForCandidate(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ForCandidate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d providers, want 2", len(got))
	}

	if _, err := dir.ForCandidate(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeactivateHidesProvider(t *testing.T) {
	db := openProfileTestDB(t)
	seedDirectory(t, db)

	dir := NewDirectory(db, nil, nil, zerolog.Nop())
	ctx := context.Background()

	if err := dir.Deactivate(ctx, "p-backend"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	got, err := dir.ListByDesignation(ctx, "Backend Engineer")
	if err != nil {
		t.Fatalf("ListByDesignation: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p-mixed" {
		t.Fatalf("got %+v, want only p-mixed", got)
	}

	if err := dir.Deactivate(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
