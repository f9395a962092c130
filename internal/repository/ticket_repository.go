package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/callback-service/internal/domain"
)

// TicketFilter captures optional list parameters, already mapped to storage
// form. Nil/empty fields impose no constraint.
type TicketFilter struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	Department *domain.Department
	AssignedTo string
	Search     string
}

// StatusCount is one row of a grouped ticket count.
type StatusCount struct {
	Status     domain.TicketStatus
	Department domain.Department
	Count      int
}

// TicketRepository encapsulates ticket persistence. Absent rows surface as
// pgx.ErrNoRows.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	CountByStatusDepartment(ctx context.Context) ([]StatusCount, error)
	CountCreatedSince(ctx context.Context, since time.Time) ([]StatusCount, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, full_name, phone_number, email, reason, priority, status,
               assigned_to, reported_by, department, created_on`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (full_name, phone_number, email, reason, priority, status, assigned_to, reported_by, department)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_on`
	if err := r.pool.QueryRow(ctx, query,
		ticket.FullName,
		ticket.PhoneNumber,
		ticket.Email,
		ticket.Reason,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.ReportedBy,
		ticket.Department,
	).Scan(&ticket.ID, &ticket.CreatedOn); err != nil {
		return err
	}
	ticket.Notes = []domain.Note{}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET full_name=$1, phone_number=$2, email=$3, reason=$4,
            priority=$5, status=$6, assigned_to=$7, reported_by=$8, department=$9
        WHERE id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.FullName,
		ticket.PhoneNumber,
		ticket.Email,
		ticket.Reason,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.ReportedBy,
		ticket.Department,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.FullName,
		&ticket.PhoneNumber,
		&ticket.Email,
		&ticket.Reason,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.ReportedBy,
		&ticket.Department,
		&ticket.CreatedOn,
	); err != nil {
		return nil, err
	}
	if err := r.attachNotes(ctx, []*domain.Ticket{&ticket}); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := BuildTicketWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_on DESC`, ticketColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}

	refs := make([]*domain.Ticket, len(tickets))
	for i := range tickets {
		refs[i] = &tickets[i]
	}
	if err := r.attachNotes(ctx, refs); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	// Notes go with the ticket via the ON DELETE CASCADE constraint, so the
	// single statement is atomic for the whole aggregate.
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) CountByStatusDepartment(ctx context.Context) ([]StatusCount, error) {
	const query = `SELECT status, department, COUNT(*) FROM tickets GROUP BY status, department`
	return r.queryCounts(ctx, query)
}

func (r *ticketRepository) CountCreatedSince(ctx context.Context, since time.Time) ([]StatusCount, error) {
	const query = `SELECT status, department, COUNT(*) FROM tickets WHERE created_on >= $1 GROUP BY status, department`
	return r.queryCounts(ctx, query, since)
}

func (r *ticketRepository) queryCounts(ctx context.Context, query string, args ...any) ([]StatusCount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Department, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// BuildTicketWhere compiles a filter into a WHERE clause with positional args.
// Enum filters match exactly, assignedTo as a case-insensitive substring, and
// search as a case-insensitive substring over name, email and phone.
func BuildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if strings.TrimSpace(filter.AssignedTo) != "" {
		args = append(args, "%"+filter.AssignedTo+"%")
		clauses = append(clauses, fmt.Sprintf("assigned_to ILIKE $%d", len(args)))
	}
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, "%"+filter.Search+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(full_name ILIKE %s OR email ILIKE %s OR phone_number ILIKE %s)",
			placeholder, placeholder, placeholder))
	}

	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) attachNotes(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(tickets))
	byID := make(map[string]*domain.Ticket, len(tickets))
	for _, ticket := range tickets {
		ticket.Notes = []domain.Note{}
		ids = append(ids, ticket.ID)
		byID[ticket.ID] = ticket
	}

	const query = `
        SELECT id, content, author, timestamp, ticket_id
        FROM notes WHERE ticket_id = ANY($1::uuid[])
        ORDER BY timestamp ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var note domain.Note
		if err := rows.Scan(&note.ID, &note.Content, &note.Author, &note.Timestamp, &note.TicketID); err != nil {
			return err
		}
		if ticket, ok := byID[note.TicketID]; ok {
			ticket.Notes = append(ticket.Notes, note)
		}
	}
	return rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.FullName,
			&ticket.PhoneNumber,
			&ticket.Email,
			&ticket.Reason,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedTo,
			&ticket.ReportedBy,
			&ticket.Department,
			&ticket.CreatedOn,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
