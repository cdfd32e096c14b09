// Package domain provides shared domain types for berth.
package domain

import (
	"time"

	"github.com/mrz1836/berth/internal/constants"
)

// Project groups issues and supplies the key prefix and sequence used to
// mint new issue keys.
//
// Example JSON representation:
//
//	{
//	    "id": "5b0f1c8e-6a43-4d0e-9d7e-2f1f1b3c4a55",
//	    "name": "demo",
//	    "prefix": "DEMO",
//	    "next_seq": 4,
//	    "created_at": "2026-03-01T09:00:00Z"
//	}
type Project struct {
	// ID is the canonical identifier of the project.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// Prefix is the upper-case key prefix (DEMO in DEMO-1).
	Prefix string `json:"prefix"`

	// NextSeq is the sequence number the next issue will receive.
	// It only ever increases, so keys are never reused.
	NextSeq int `json:"next_seq"`

	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a trackable unit of work.
type Issue struct {
	// ID is the canonical, immutable identifier (a UUID).
	ID string `json:"id"`

	// Key is the human-readable identifier, e.g. DEMO-1.
	Key string `json:"key"`

	// ProjectID references the owning project.
	ProjectID string `json:"project_id"`

	// Title is a short description, used to derive branch names.
	Title string `json:"title"`

	// Status is the current lifecycle status.
	Status constants.IssueStatus `json:"status"`

	// CreatedAt is when the issue was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the issue was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}
