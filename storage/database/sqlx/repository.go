// Package sqlxrepos implements the core repositories on PostgreSQL with jmoiron/sqlx.
package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
)

type repository struct {
	exec core.DBExecutor
}

// getExec returns the service's executor (a transaction) if any, or the repository's pool.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// isUUID avoids sending ids postgres would reject with a syntax error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
