package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/callback-service/internal/domain"
	"github.com/opsdesk/callback-service/internal/repository"
	apperrors "github.com/opsdesk/callback-service/pkg/util/errorutil"
)

// TicketService coordinates callback-request workflows.
type TicketService struct {
	tickets repository.TicketRepository
	notes   repository.NoteRepository
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	NoteRepo   repository.NoteRepository
}

// TicketStats aggregates dashboard counters keyed by storage enums.
type TicketStats struct {
	ByStatus           map[domain.TicketStatus]int
	ByStatusDepartment map[domain.TicketStatus]map[domain.Department]int
	Today              map[domain.TicketStatus]int
	ThisWeek           map[domain.TicketStatus]int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{tickets: deps.TicketRepo, notes: deps.NoteRepo}
}

// ListTickets returns tickets matching the filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// GetTicket fetches one ticket with its notes.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, err
	}
	return ticket, nil
}

// CreateTicket persists a new ticket; identity and creation timestamp are
// assigned by storage.
func (s *TicketService) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return s.tickets.Create(ctx, ticket)
}

// UpdateTicket writes back a merged ticket. Callers load the ticket first, so
// absent request fields keep their stored values.
func (s *TicketService) UpdateTicket(ctx context.Context, ticket *domain.Ticket) error {
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket")
		}
		return err
	}
	return nil
}

// DeleteTicket removes a ticket and, through the storage cascade, all of its
// notes.
func (s *TicketService) DeleteTicket(ctx context.Context, id string) error {
	if err := s.tickets.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket")
		}
		return err
	}
	return nil
}

// AddNote attaches a note to an existing ticket. Note identity is assigned
// here, the timestamp by storage.
func (s *TicketService) AddNote(ctx context.Context, ticketID, content, author string) (*domain.Note, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	note := &domain.Note{
		ID:       uuid.NewString(),
		Content:  content,
		Author:   author,
		TicketID: ticketID,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// DeleteNote removes a note from a ticket. A note that exists under a
// different ticket reads the same as an absent one.
func (s *TicketService) DeleteNote(ctx context.Context, ticketID, noteID string) error {
	if err := s.notes.DeleteFromTicket(ctx, ticketID, noteID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("note")
		}
		return err
	}
	return nil
}

// Stats aggregates the dashboard counters: totals per status and department,
// plus tickets opened today and over the trailing week.
func (s *TicketService) Stats(ctx context.Context, now time.Time) (*TicketStats, error) {
	totals, err := s.tickets.CountByStatusDepartment(ctx)
	if err != nil {
		return nil, err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.tickets.CountCreatedSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}

	week, err := s.tickets.CountCreatedSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	stats := &TicketStats{
		ByStatus:           map[domain.TicketStatus]int{},
		ByStatusDepartment: map[domain.TicketStatus]map[domain.Department]int{},
		Today:              map[domain.TicketStatus]int{},
		ThisWeek:           map[domain.TicketStatus]int{},
	}
	for _, c := range totals {
		stats.ByStatus[c.Status] += c.Count
		if stats.ByStatusDepartment[c.Status] == nil {
			stats.ByStatusDepartment[c.Status] = map[domain.Department]int{}
		}
		stats.ByStatusDepartment[c.Status][c.Department] += c.Count
	}
	for _, c := range today {
		stats.Today[c.Status] += c.Count
	}
	for _, c := range week {
		stats.ThisWeek[c.Status] += c.Count
	}
	return stats, nil
}
