package domain

import "github.com/pkg/errors"

var (
	// ErrTransient marks network and rate-limit failures that may be retried.
	ErrTransient = errors.New("transient gateway error")
	// ErrOfferRejected marks an expired, stale or refused offer.
	ErrOfferRejected = errors.New("offer rejected")
)
