package mapper

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
)

// Survey tools prefix instance identifiers with a literal scheme marker,
// e.g. "uuid:5c59e249-b88e-4742-abb6-942f79627cb6".
const uuidPrefix = "uuid:"

// NormalizeIdentifier strips the optional "uuid:" prefix from a raw
// identifier and validates the remainder as a canonical UUID. Empty or
// malformed identifiers fail with *apperrors.InvalidIdentifierError; callers
// must reject the record rather than null the field, because form and
// instance identifiers tie submissions back to their survey instance.
func NormalizeIdentifier(key, raw string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, uuidPrefix)
	if trimmed == "" {
		return uuid.Nil, &apperrors.InvalidIdentifierError{
			Key: key, Value: raw, Err: errors.New("empty identifier"),
		}
	}

	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, &apperrors.InvalidIdentifierError{Key: key, Value: raw, Err: err}
	}
	return id, nil
}
