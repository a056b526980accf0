package service

import (
	"errors"
	"fmt"
)

var (
	ErrPostNotFound           = errors.New("scheduled post not found")
	ErrAccountNotFound        = errors.New("social account not found")
	ErrPoolNotFound           = errors.New("ip pool not found")
	ErrSessionNotFound        = errors.New("ip pool session not found")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrInvalidCampaignState   = errors.New("invalid campaign state")
	ErrNoWorkersAvailable     = errors.New("no online workers support the requested platforms")
	ErrNoCandidatePosts       = errors.New("no content and account pairs match the campaign platforms")
	ErrPlatformNotImplemented = errors.New("platform not implemented")
	ErrNoActivePageToken      = errors.New("no active page access token")
	ErrNoContentAvailable     = errors.New("no content available for scheduling")
	ErrNoAccountsAvailable    = errors.New("no social accounts available for scheduling")
)

// PermanentError marks a failure that retrying cannot fix. The publisher
// moves such posts straight to failed.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func permanent(err error) error {
	return &PermanentError{Err: err}
}

func permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
