package usecase

import (
	"errors"
	"fmt"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

var ErrNotConfigured = errors.New("usecase dependency not configured")

// wrapProvider keeps platform verdicts and classified failures intact and
// reports anything else as a resolution failure.
func wrapProvider(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrInvalidVideoID),
		errors.Is(err, domain.ErrResolutionFailed):
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
}
