package chat

import "errors"

var (
	// ErrUnknownRecipient rejects a send whose receiver does not resolve in
	// the directory. Raised before anything is persisted.
	ErrUnknownRecipient = errors.New("recipient does not exist")

	// ErrPartnerNotFound is the access-guard denial: no shared history and
	// the partner does not resolve. Maps to 404.
	ErrPartnerNotFound = errors.New("conversation partner not found")
)
