package viewer

import (
	"github.com/JonMunkholm/dataview/internal/gateway"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// Action is an input to Reduce: either a user command or the completion
// of an effect.
type Action interface{ isAction() }

/* ----------------------------------------
	COMMANDS
---------------------------------------- */

// SelectFile stages a file, discarding the current dataset.
type SelectFile struct{ File FileRef }

// RemoveFile discards the staged file and the current dataset.
type RemoveFile struct{}

// Upload submits the staged file.
type Upload struct{}

// LoadMore requests the next page of rows.
type LoadMore struct{}

// OverrideType changes the display type of a column.
type OverrideType struct {
	Column string
	Type   schema.DisplayType
}

// Mount is sent once when the view starts; it tries to resume a dataset
// left on the backend by an earlier session.
type Mount struct{}

/* ----------------------------------------
	COMPLETIONS
---------------------------------------- */

type UploadSucceeded struct {
	Generation uint64
	Page       gateway.Page
}

type UploadFailed struct {
	Generation uint64
	Err        error
}

type PageLoaded struct {
	Generation uint64
	Offset     int
	Page       gateway.Page
}

type PageFailed struct {
	Generation uint64
	Offset     int
	Err        error
}

type OverridePersisted struct {
	Generation uint64
	Column     string
}

type OverrideFailed struct {
	Generation uint64
	Column     string
	Err        error
}

func (SelectFile) isAction()        {}
func (RemoveFile) isAction()        {}
func (Upload) isAction()            {}
func (LoadMore) isAction()          {}
func (OverrideType) isAction()      {}
func (Mount) isAction()             {}
func (UploadSucceeded) isAction()   {}
func (UploadFailed) isAction()      {}
func (PageLoaded) isAction()        {}
func (PageFailed) isAction()        {}
func (OverridePersisted) isAction() {}
func (OverrideFailed) isAction()    {}

/* ----------------------------------------
	EFFECTS
---------------------------------------- */

// Effect is a request for I/O emitted by Reduce.
type Effect interface{ isEffect() }

// SubmitFileEffect uploads File.
type SubmitFileEffect struct {
	Generation uint64
	File       FileRef
}

// FetchPageEffect fetches Limit rows from Offset.
type FetchPageEffect struct {
	Generation uint64
	Offset     int
	Limit      int
}

// PersistOverrideEffect stores column type overrides on the backend.
type PersistOverrideEffect struct {
	Generation uint64
	Types      map[string]schema.DisplayType
}

func (SubmitFileEffect) isEffect()      {}
func (FetchPageEffect) isEffect()       {}
func (PersistOverrideEffect) isEffect() {}
