package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The transfer reference is the public contract between the withdrawal
// orchestrator (which generates it) and the settlement reconciler (which
// parses it out of provider callbacks):
//
//	withdrawal_<uuid>_<unix-ms>
//
// Changing the prefix, delimiter, or field order breaks reconciliation of
// in-flight transfers and must be versioned with a new prefix.
const transferReferencePrefix = "withdrawal"

// ErrMalformedReference reports a provider reference that does not match
// the transfer reference format.
var ErrMalformedReference = errors.New("malformed transfer reference")

// BuildTransferReference formats the reference string sent to the transfer
// provider for a withdrawal.
func BuildTransferReference(withdrawalID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", transferReferencePrefix, withdrawalID, at.UnixMilli())
}

// ParseTransferReference extracts the withdrawal id from a provider
// reference string.
func ParseTransferReference(ref string) (uuid.UUID, error) {
	parts := strings.Split(ref, "_")
	if len(parts) != 3 || parts[0] != transferReferencePrefix {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	return id, nil
}
