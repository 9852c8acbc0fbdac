// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type repository struct {
	db *sqlx.DB
}

// getExec returns the transaction handed over by the service, or the pool.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

func hasCode(err error, code pq.ErrorCode) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolation)
}

// mapErr turns "no rows" into notFound, unique violations into conflict and wraps anything else.
func mapErr(err error, notFound, conflict error, doing string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows) && notFound != nil:
		return notFound
	case isUniqueViolation(err) && conflict != nil:
		return conflict
	}
	return errors.Wrap(err, doing)
}

// mustAffect returns notFound when res reports no affected rows.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// validIDs reports whether every id is a UUID; other values can never match a row.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// limitOffset appends LIMIT and OFFSET placeholders after n arguments.
func limitOffset(n int) string {
	return " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
}
