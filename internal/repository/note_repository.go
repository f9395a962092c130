package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/callback-service/internal/domain"
)

// NoteRepository encapsulates note persistence.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	DeleteFromTicket(ctx context.Context, ticketID, noteID string) error
}

type noteRepository struct {
	pool *pgxpool.Pool
}

// NewNoteRepository instantiates repository.
func NewNoteRepository(pool *pgxpool.Pool) NoteRepository {
	return &noteRepository{pool: pool}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	const query = `
        INSERT INTO notes (id, content, author, ticket_id)
        VALUES ($1,$2,$3,$4)
        RETURNING timestamp`
	return r.pool.QueryRow(ctx, query,
		note.ID,
		note.Content,
		note.Author,
		note.TicketID,
	).Scan(&note.Timestamp)
}

// DeleteFromTicket removes a note only when it belongs to the given ticket; a
// mismatched pair reads the same as an absent note.
func (r *noteRepository) DeleteFromTicket(ctx context.Context, ticketID, noteID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id=$1 AND ticket_id=$2`, noteID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
