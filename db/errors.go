package db

import (
	"errors"
	"strings"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// IsUniqueViolation reports whether err came from a unique constraint on insert.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	// gorm v1 às vezes devolve o erro do driver já formatado
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func IsNotFound(err error) bool {
	return gorm.IsRecordNotFoundError(err)
}
