package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketTypeRepository stores the read-mostly ticket type reference data.
type TicketTypeRepository interface {
	Create(ctx context.Context, ticketType *domain.TicketType) error
	Update(ctx context.Context, ticketType *domain.TicketType) error
	GetByID(ctx context.Context, id string) (*domain.TicketType, error)
	List(ctx context.Context) ([]domain.TicketType, error)
}

type ticketTypeRepository struct {
	pool *pgxpool.Pool
}

// NewTicketTypeRepository builds the repository.
func NewTicketTypeRepository(pool *pgxpool.Pool) TicketTypeRepository {
	return &ticketTypeRepository{pool: pool}
}

func (r *ticketTypeRepository) Create(ctx context.Context, ticketType *domain.TicketType) error {
	const query = `
        INSERT INTO ticket_types (name, active, priority_level, sla_minutes)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticketType.Name,
		ticketType.Active,
		ticketType.PriorityLevel,
		ticketType.SLAMinutes,
	).Scan(&ticketType.ID, &ticketType.CreatedAt, &ticketType.UpdatedAt)
}

func (r *ticketTypeRepository) Update(ctx context.Context, ticketType *domain.TicketType) error {
	const query = `
        UPDATE ticket_types SET name=$1, active=$2, priority_level=$3, sla_minutes=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticketType.Name,
		ticketType.Active,
		ticketType.PriorityLevel,
		ticketType.SLAMinutes,
		ticketType.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	const query = `
        SELECT id, name, active, priority_level, sla_minutes, created_at, updated_at
        FROM ticket_types WHERE id=$1`
	var ticketType domain.TicketType
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticketType.ID,
		&ticketType.Name,
		&ticketType.Active,
		&ticketType.PriorityLevel,
		&ticketType.SLAMinutes,
		&ticketType.CreatedAt,
		&ticketType.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticketType, nil
}

func (r *ticketTypeRepository) List(ctx context.Context) ([]domain.TicketType, error) {
	const query = `
        SELECT id, name, active, priority_level, sla_minutes, created_at, updated_at
        FROM ticket_types ORDER BY priority_level DESC, name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketType
	for rows.Next() {
		var ticketType domain.TicketType
		if err := rows.Scan(
			&ticketType.ID,
			&ticketType.Name,
			&ticketType.Active,
			&ticketType.PriorityLevel,
			&ticketType.SLAMinutes,
			&ticketType.CreatedAt,
			&ticketType.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticketType)
	}
	return result, rows.Err()
}
