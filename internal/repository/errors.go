package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Код Postgres unique_violation.
const uniqueViolationCode = "23505"

// isUniqueViolation сообщает, является ли ошибка нарушением уникального
// ограничения. Частичные уникальные индексы схемы превращают гонки
// один-активный-ход и одна-pending-запись в такие ошибки.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
