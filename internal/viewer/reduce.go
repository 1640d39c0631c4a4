package viewer

import (
	"errors"

	"github.com/JonMunkholm/dataview/internal/gateway"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// MsgNoFile is the upload error for an upload without a staged file.
const MsgNoFile = "No file selected."

// Reduce returns the session that follows s after a, plus the effects to
// run. s is never modified.
func Reduce(s Session, a Action) (Session, []Effect) {
	switch a := a.(type) {
	case SelectFile:
		f := a.File
		return reset(s, &f), nil

	case RemoveFile:
		return reset(s, nil), nil

	case Upload:
		return upload(s)

	case LoadMore:
		return loadMore(s)

	case Mount:
		if s.Mounted {
			return s, nil
		}
		s.Mounted = true
		if s.File != nil {
			return s, nil
		}
		s.Resuming = true
		return loadMore(s)

	case OverrideType:
		return overrideType(s, a)

	case UploadSucceeded:
		if a.Generation != s.Generation || s.Phase != PhaseUploading {
			return s, nil
		}
		return uploadSucceeded(s, a.Page), nil

	case UploadFailed:
		if a.Generation != s.Generation || s.Phase != PhaseUploading {
			return s, nil
		}
		s.Busy = false
		s.UploadErr = uploadMessage(a.Err)
		s.Phase = s.restingPhase()
		return s, nil

	case PageLoaded:
		if a.Generation != s.Generation || s.Phase != PhaseLoadingMore || a.Offset != s.Cursor {
			return s, nil
		}
		return pageLoaded(s, a.Page), nil

	case PageFailed:
		if a.Generation != s.Generation || s.Phase != PhaseLoadingMore || a.Offset != s.Cursor {
			return s, nil
		}
		s.Busy = false
		s.BrowseErr = gateway.MsgFetchFailed
		s.Phase = s.restingPhase()
		return s, nil

	case OverridePersisted:
		return s, nil

	case OverrideFailed:
		if a.Generation != s.Generation {
			return s, nil
		}
		// The local override stays; only the error is reported.
		s.BrowseErr = gateway.MsgUpdateFailed
		return s, nil
	}

	return s, nil
}

// reset clears the dataset and stages file (nil for none).
func reset(s Session, file *FileRef) Session {
	return Session{
		Generation: s.Generation + 1,
		File:       file,
		Phase:      PhaseIdle,
		Mounted:    s.Mounted,
		PageSize:   s.PageSize,
	}
}

func upload(s Session) (Session, []Effect) {
	if s.Busy {
		return s, nil
	}
	if s.File == nil {
		s.UploadErr = MsgNoFile
		return s, nil
	}

	s.Busy = true
	s.Phase = PhaseUploading
	return s, []Effect{SubmitFileEffect{Generation: s.Generation, File: *s.File}}
}

func uploadSucceeded(s Session, p gateway.Page) Session {
	rows := append([]schema.Row(nil), p.Rows...)

	sch := p.Schema.Map()
	sch.CoverRows(rows)

	s.Schema = sch
	s.Rows = rows
	s.Cursor = len(rows)
	s.TotalCount = max(p.TotalCount, s.Cursor)
	s.Busy = false
	s.UploadErr = ""
	s.BrowseErr = ""
	s.Phase = s.restingPhase()
	return s
}

func loadMore(s Session) (Session, []Effect) {
	if !s.CanLoadMore() {
		return s, nil
	}

	s.Busy = true
	s.Phase = PhaseLoadingMore
	return s, []Effect{FetchPageEffect{
		Generation: s.Generation,
		Offset:     s.Cursor,
		Limit:      s.PageSize,
	}}
}

func pageLoaded(s Session, p gateway.Page) Session {
	rows := make([]schema.Row, 0, len(s.Rows)+len(p.Rows))
	rows = append(rows, s.Rows...)
	rows = append(rows, p.Rows...)

	// Local schema entries, including overrides, win over the response.
	sch := s.Schema.Clone()
	sch.Merge(p.Schema.Map())
	sch.CoverRows(p.Rows)

	s.Rows = rows
	s.Schema = sch
	s.Cursor += len(p.Rows)
	s.Resuming = false
	if len(p.Rows) == 0 {
		// Nothing more to read, whatever the reported total says.
		s.TotalCount = s.Cursor
	} else {
		s.TotalCount = max(p.TotalCount, s.Cursor)
	}
	s.Busy = false
	s.BrowseErr = ""
	s.Phase = s.restingPhase()
	return s
}

func overrideType(s Session, a OverrideType) (Session, []Effect) {
	if !a.Type.Valid() || !s.Schema.Has(a.Column) {
		return s, nil
	}

	sch := s.Schema.Clone()
	sch.Set(a.Column, a.Type)
	s.Schema = sch
	s.BrowseErr = ""

	return s, []Effect{PersistOverrideEffect{
		Generation: s.Generation,
		Types:      map[string]schema.DisplayType{a.Column: a.Type},
	}}
}

// uploadMessage picks the user-facing text for an upload failure.
func uploadMessage(err error) string {
	var upErr *gateway.UploadError
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	return gateway.MsgUploadFailed
}
