package langdata

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrInvalidLanguage is returned for language codes that can not be mapped to a file name
// inside the asset root.
var ErrInvalidLanguage = errors.New("invalid language code")

// FilesystemError reports a failure to create, list or write the asset root or an asset.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) {
		// the path is part of Err already
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// DownloadError reports a failed or timed out asset download.
// StatusCode is 0 if no HTTP response was received.
type DownloadError struct {
	Lang       string
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("downloading language data '%s' from %s: status %d", e.Lang, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("downloading language data '%s' from %s: %v", e.Lang, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
