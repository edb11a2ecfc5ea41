package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	RequesterID *string
	HelperID    *string
	Statuses    []domain.TicketStatus
	Limit       int
	Offset      int
}

// TicketRepository is the single source of truth for ticket state.
//
// Transition is the only way status-changing writes happen: it re-reads the
// row under lock, verifies the expected status, applies mutate and commits
// atomically. When the precondition no longer holds it returns
// ErrPreconditionFailed so two racing claims can never both succeed.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Transition(ctx context.Context, id string, expected domain.TicketStatus, mutate func(*domain.Ticket) error) (*domain.Ticket, error)

	CountByStatus(ctx context.Context, status domain.TicketStatus) (int, error)
	CountUnassignedOpen(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountInProgressByHelper(ctx context.Context) (map[string]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates a Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, key, requester_user_id, helper_user_id, type_id, category,
       title, description, status, opened_at, started_at, closed_at, version,
       created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (key, requester_user_id, helper_user_id, type_id, category, title, description, status, opened_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Key,
		ticket.RequesterID,
		ticket.HelperID,
		ticket.TypeID,
		ticket.Category,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.OpenedAt,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	ticket, err := scanTicketRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Transition(ctx context.Context, id string, expected domain.TicketStatus, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	ticket, err := scanTicketRow(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ticket.Status != expected {
		return nil, ErrPreconditionFailed
	}
	if err := mutate(ticket); err != nil {
		return nil, err
	}
	ticket.Version++

	const update = `
        UPDATE tickets SET helper_user_id=$1, type_id=$2, category=$3, title=$4, description=$5,
            status=$6, started_at=$7, closed_at=$8, version=$9, updated_at=NOW()
        WHERE id=$10`
	cmd, err := tx.Exec(ctx, update,
		ticket.HelperID,
		ticket.TypeID,
		ticket.Category,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.StartedAt,
		ticket.ClosedAt,
		ticket.Version,
		ticket.ID,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrPreconditionFailed
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_user_id=$%d", len(args)))
	}
	if filter.HelperID != nil {
		args = append(args, *filter.HelperID)
		clauses = append(clauses, fmt.Sprintf("helper_user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY opened_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatus(ctx context.Context, status domain.TicketStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE status=$1`, status).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountUnassignedOpen(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE status=$1 AND helper_user_id IS NULL`,
		domain.TicketStatusOpen).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE opened_at >= $1`, since).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountInProgressByHelper(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT helper_user_id, COUNT(*) FROM tickets
         WHERE status=$1 AND helper_user_id IS NOT NULL
         GROUP BY helper_user_id`, domain.TicketStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var helperID string
		var count int
		if err := rows.Scan(&helperID, &count); err != nil {
			return nil, err
		}
		counts[helperID] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Key,
		&ticket.RequesterID,
		&ticket.HelperID,
		&ticket.TypeID,
		&ticket.Category,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.OpenedAt,
		&ticket.StartedAt,
		&ticket.ClosedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
