package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrRepository = errors.New("repository error")
	ErrExtractor  = errors.New("extractor error")
	ErrStorage    = errors.New("storage error")
)

// The wrappers keep the cause in the chain so typed extractor errors
// stay visible to errors.As through the sentinel.
func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

func wrapExtractor(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrExtractor, err)
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
