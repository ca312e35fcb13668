package postgres

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
)

// isUniqueViolation recognises duplicate-key failures from both drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
