package web

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/JonMunkholm/dataview/internal/core"
	"github.com/JonMunkholm/dataview/internal/logging"
	"github.com/JonMunkholm/dataview/internal/metrics"
)

// multipartOverhead is the body allowance on top of the file itself for
// boundaries and part headers.
const multipartOverhead = 1 << 20

// handleUpload ingests the multipart field "file" and replies with the first
// page of the new dataset. The part is streamed into the service; the body
// is never buffered whole.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.extendUploadDeadline(w, r, start)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	part, err := filePart(r)
	if err != nil {
		s.observeUpload(err, 0, start)
		respondError(w, r, err)
		return
	}
	defer part.Close()

	ctx := requestContext(r)
	res, err := s.service.Ingest(ctx, part.FileName(), part)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = core.ErrFileTooLarge
		}
		s.observeUpload(err, 0, start)
		respondError(w, r, err)
		return
	}

	s.observeUpload(nil, res.TotalCount, start)
	logging.FromContext(ctx).Debug("upload served",
		"dataset_id", res.DatasetID,
		"rows", len(res.Rows),
		"total", res.TotalCount,
	)
	writeJSON(w, r, res)
}

// extendUploadDeadline lifts the server's read and write deadlines for this
// connection to the upload timeout, so a transfer is bounded by the same
// limit as Ingest rather than by SERVER_READ_TIMEOUT.
func (s *Server) extendUploadDeadline(w http.ResponseWriter, r *http.Request, start time.Time) {
	if s.cfg.Upload.Timeout <= 0 {
		return
	}
	deadline := start.Add(s.cfg.Upload.Timeout)
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.FromContext(r.Context()).Warn("extend upload read deadline", "error", err)
	}
	if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.FromContext(r.Context()).Warn("extend upload write deadline", "error", err)
	}
}

// filePart advances the multipart body to the part named "file".
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, core.ErrNoFile
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, core.ErrNoFile
		}
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, core.ErrFileTooLarge
			}
			return nil, core.ErrNoFile
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) observeUpload(err error, rows int, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case statusFor(err) < http.StatusInternalServerError:
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveUpload(outcome, rows, time.Since(start))
}
