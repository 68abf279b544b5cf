package storage

import (
	"database/sql"
	"fmt"
)

// requireRows validates that an exec affected at least one row, mapping an
// empty result to ErrNotFound.
func requireRows(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}
