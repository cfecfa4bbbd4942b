package services

import (
	"errors"
	"net/http"

	"loanrecovery/internal/dataset"
	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/session"
)

// uploadError classifies a failure to read an uploaded file
func uploadError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return err
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return apierrors.ErrUnsupportedFormat
	default:
		return apierrors.UnreadableUpload(err)
	}
}

// notReady explains why a session has no results
func notReady(snap session.Snapshot) error {
	if snap.LastError == nil {
		return apierrors.SessionNotReady("", "")
	}
	return apierrors.SessionNotReady(snap.LastError.Kind, snap.LastError.Message)
}
