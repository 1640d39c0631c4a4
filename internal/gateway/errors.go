package gateway

// Fallback messages shown when the backend does not supply one.
const (
	MsgUploadFailed = "File upload failed."
	MsgFetchFailed  = "Failed to load data."
	MsgUpdateFailed = "Failed to update column types."
)

// UploadError is returned by SubmitFile. Message is safe to show to users:
// it carries the backend's message when one was sent.
type UploadError struct {
	Message string
	Status  int // HTTP status, 0 for transport failures
	Err     error
}

func (e *UploadError) Error() string { return e.Message }
func (e *UploadError) Unwrap() error { return e.Err }

// FetchError is returned by FetchPage. The message is always generic;
// backend detail is only available through Unwrap.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string { return MsgFetchFailed }
func (e *FetchError) Unwrap() error { return e.Err }

// UpdateError is returned by PersistTypeOverride.
type UpdateError struct {
	Status int
	Err    error
}

func (e *UpdateError) Error() string { return MsgUpdateFailed }
func (e *UpdateError) Unwrap() error { return e.Err }
