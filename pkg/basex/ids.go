package basex

import (
	"strings"

	"github.com/google/uuid"
)

// NewDocumentID returns a random 128-bit token as 32 hex characters.
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
