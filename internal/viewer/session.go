// Package viewer holds the dataset view state machine.
//
// All state lives in a Session value. Reduce computes the next Session from
// the current one and an Action, and returns the Effects (network calls)
// the transition asks for. Effects run elsewhere; their results come back
// as completion actions tagged with the Generation they were issued under,
// and completions from an older generation are dropped.
package viewer

import (
	"github.com/JonMunkholm/dataview/internal/schema"
)

// DefaultPageSize is the number of rows requested per page.
const DefaultPageSize = 100

// Phase is the coarse state of a Session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseReady
	PhaseLoadingMore
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseReady:
		return "ready"
	case PhaseLoadingMore:
		return "loading"
	default:
		return "unknown"
	}
}

// FileRef identifies a staged file. Path is what the effect executor opens;
// Name is what the backend sees.
type FileRef struct {
	Name string
	Path string
	Size int64
}

// Session is the complete state of one dataset view.
type Session struct {
	// Generation increases on every file selection or removal. Requests
	// carry the generation they were issued under.
	Generation uint64

	File       *FileRef
	Schema     schema.Schema
	Rows       []schema.Row
	TotalCount int
	Cursor     int

	Busy  bool
	Phase Phase

	UploadErr string
	BrowseErr string

	// Mounted is set once the resume-on-mount fetch has been attempted.
	Mounted bool
	// Resuming is set while the resume-on-mount fetch is outstanding or has
	// failed without a dataset. File selection and removal clear it.
	Resuming bool
	PageSize int
}

// NewSession returns an empty session. A non-positive pageSize selects
// DefaultPageSize.
func NewSession(pageSize int) Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Session{PageSize: pageSize}
}

// HasDataset reports whether a schema or rows are loaded.
func (s Session) HasDataset() bool {
	return s.Schema.Len() > 0 || len(s.Rows) > 0 || s.TotalCount > 0
}

// Exhausted reports whether every row the backend announced has been
// requested.
func (s Session) Exhausted() bool {
	return s.TotalCount > 0 && s.Cursor >= s.TotalCount
}

// CanLoadMore reports whether LoadMore would issue a request.
func (s Session) CanLoadMore() bool {
	if s.Busy || s.Exhausted() {
		return false
	}
	// Without a dataset only the resume fetch may be (re)issued; a staged
	// file has nothing to page until it is uploaded.
	if !s.HasDataset() {
		return s.File == nil && s.Resuming
	}
	return true
}

// restingPhase is the phase a session settles in when nothing is in flight.
func (s Session) restingPhase() Phase {
	if s.HasDataset() {
		return PhaseReady
	}
	return PhaseIdle
}
