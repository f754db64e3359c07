package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	// The in-memory store ignores it.
	DBExecutor interface {
		sqlx.ExtContext
	}

	// Transactor runs fn inside a single atomic unit of work.
	// fn's error (or panic) rolls everything back.
	Transactor interface {
		Transact(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops any ordering whose field is not in allowed.
func AllowedOrderings(ordering []DBOrdering, allowed ...string) []DBOrdering {
	clean := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, field := range allowed {
			if ord.Field == field {
				clean = append(clean, ord)
				break
			}
		}
	}
	return clean
}
