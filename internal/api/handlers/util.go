package handlers

import (
	"errors"
	"io"
)

// emptyBody reports whether a DecodeJSON error was caused by an empty body,
// which POST endpoints with all-optional fields accept.
func emptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
