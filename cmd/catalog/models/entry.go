package models

import (
	"fmt"
	"time"
)

// Entry is one catalog record.
// Maps to: catalog_entries table
type Entry struct {
	// Assigned by the identity allocator, never reused
	ID int64 `db:"id" json:"id"`

	Title string `db:"title" json:"title"`

	// Seconds
	Duration int64 `db:"duration_seconds" json:"duration"`

	// Empty until a payload is bound
	ContentType string `db:"content_type" json:"contentType"`

	// Derived at read time from the public base URL and ID, never stored
	DataURL string `db:"-" json:"dataUrl"`

	// Derived from the engagement registry, never stored
	Likes int64 `db:"-" json:"likes"`

	CreatedAt time.Time `db:"created_at" json:"-"`
}

// Clone returns a copy that shares no state with e
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// PayloadLocator returns where the entry's payload is served
func PayloadLocator(baseURL string, id int64) string {
	return fmt.Sprintf("%s/video/%d/data", baseURL, id)
}

// CreateEntryRequest is the body of POST /video.
// Client-supplied id, contentType, dataUrl and likes are ignored.
type CreateEntryRequest struct {
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
}

// EntryDetails are the client-editable fields
type EntryDetails struct {
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
}
