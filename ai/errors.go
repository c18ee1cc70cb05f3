package ai

import (
	"errors"
	"fmt"
)

// ErrPermanent marks backend failures that retrying cannot fix, such as
// invalid credentials or a rejected model name.
var ErrPermanent = errors.New("permanent embedding backend error")

// Permanent marks err as not retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
