package service

import (
	"errors"
	"fmt"

	"stockledger/internal/repository"
)

// Error kinds returned by the services. Callers classify with errors.Is; the
// HTTP layer maps each kind to one status code.
var (
	ErrDuplicateCode     = errors.New("stock code already exists")
	ErrInvalidReference  = errors.New("referenced record does not exist")
	ErrInvalidQuantity   = errors.New("invalid quantity or missing field")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrPersistence       = errors.New("storage operation failed")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrDuplicateUsername = errors.New("username already taken")
)

// errConcurrentUpdate signals a lost compare-and-swap inside Adjust; it never
// leaves the package.
var errConcurrentUpdate = errors.New("concurrent stock update")

// persistence wraps a storage failure so it matches ErrPersistence while
// keeping the driver error in the chain.
func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// classify keeps already-classified errors and maps repository sentinels.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrForeignKey):
		return fmt.Errorf("%s: %w", op, ErrInvalidReference)
	}
	return persistence(op, err)
}
