package feed

import (
	"errors"
	"time"
)

// ErrNoEntries is returned when a document would have no entries
var ErrNoEntries = errors.New("feed has no entries")

// SourceRef names the single title an entry came from
type SourceRef struct {
	Name string
	URL  string
}

// Entry is one item of the merged feed
type Entry struct {
	Title       string
	Link        string
	Description string // HTML
	Author      string
	GUID        string // never a permalink
	Published   time.Time
	Category    string
	Source      *SourceRef // set only when exactly one title is linked
}

// Meta holds the fixed document-level fields
type Meta struct {
	Title       string
	Link        string
	Description string
	TTL         int // minutes
}

// Document is an assembled feed ready for serialization
type Document struct {
	Meta
	BuildTime   time.Time
	LastContent time.Time
	Entries     []*Entry
}

// NewDocument builds a document. LastContent is the newest entry's
// publication time, so an empty entry set is an error.
func NewDocument(meta Meta, built time.Time, entries []*Entry) (*Document, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	last := entries[0].Published
	for _, e := range entries[1:] {
		if e.Published.After(last) {
			last = e.Published
		}
	}

	return &Document{
		Meta:        meta,
		BuildTime:   built.UTC(),
		LastContent: last.UTC(),
		Entries:     entries,
	}, nil
}
