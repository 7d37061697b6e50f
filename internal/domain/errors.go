package domain

import "errors"

var (
	ErrNotFound  = errors.New("video not found or unavailable")
	ErrForbidden = errors.New("video is private or age-restricted")

	ErrInvalidVideoID = errors.New("invalid or missing videoId")

	ErrResolutionFailed = errors.New("source resolution failed")
	ErrProbeFailed      = errors.New("duration probe failed")
	ErrDownloadFailed   = errors.New("materialization failed")
)
