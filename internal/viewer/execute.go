package viewer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/dataview/internal/gateway"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// Gateway is the transport the effects run against. *gateway.Client
// implements it.
type Gateway interface {
	SubmitFile(ctx context.Context, name string, body io.Reader) (gateway.Page, error)
	FetchPage(ctx context.Context, offset, limit int) (gateway.Page, error)
	PersistTypeOverride(ctx context.Context, types map[string]schema.DisplayType) error
}

// Opener opens a staged file for upload.
type Opener func(FileRef) (io.ReadCloser, error)

// OpenFile opens FileRef.Path from the local filesystem.
func OpenFile(f FileRef) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Execute runs one effect to completion and returns the completion action
// to feed back into Reduce. It blocks for the duration of the request.
func Execute(ctx context.Context, gw Gateway, open Opener, e Effect) Action {
	switch e := e.(type) {
	case SubmitFileEffect:
		if open == nil {
			open = OpenFile
		}
		body, err := open(e.File)
		if err != nil {
			return UploadFailed{
				Generation: e.Generation,
				Err:        &gateway.UploadError{Message: gateway.MsgUploadFailed, Err: fmt.Errorf("open %s: %w", e.File.Path, err)},
			}
		}
		defer body.Close()

		page, err := gw.SubmitFile(ctx, e.File.Name, body)
		if err != nil {
			return UploadFailed{Generation: e.Generation, Err: err}
		}
		return UploadSucceeded{Generation: e.Generation, Page: page}

	case FetchPageEffect:
		page, err := gw.FetchPage(ctx, e.Offset, e.Limit)
		if err != nil {
			return PageFailed{Generation: e.Generation, Offset: e.Offset, Err: err}
		}
		return PageLoaded{Generation: e.Generation, Offset: e.Offset, Page: page}

	case PersistOverrideEffect:
		column := ""
		for c := range e.Types {
			column = c
		}
		if err := gw.PersistTypeOverride(ctx, e.Types); err != nil {
			return OverrideFailed{Generation: e.Generation, Column: column, Err: err}
		}
		return OverridePersisted{Generation: e.Generation, Column: column}
	}

	return nil
}
