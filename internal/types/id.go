// README: Identifier type shared by runs and sinks.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random run identifier.
func NewID() ID {
	return ID(uuid.NewString())
}
