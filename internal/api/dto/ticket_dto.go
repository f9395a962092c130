package dto

import (
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/opsdesk/callback-service/internal/domain"
)

// CreateTicketRequest carries the full ticket payload. All fields are
// required on create.
type CreateTicketRequest struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	Reason      string `json:"reason"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assignedTo"`
	ReportedBy  string `json:"reportedBy"`
	Department  string `json:"department"`
}

// Validate checks the payload and converts it to a domain ticket. Field-level
// problems are collected into details.
func (r CreateTicketRequest) Validate() (*domain.Ticket, map[string]any) {
	details := map[string]any{}

	requireString(details, "fullName", r.FullName)
	requireString(details, "phoneNumber", r.PhoneNumber)
	requireString(details, "reason", r.Reason)
	requireString(details, "assignedTo", r.AssignedTo)
	requireString(details, "reportedBy", r.ReportedBy)

	if _, err := mail.ParseAddress(r.Email); err != nil {
		details["email"] = "must be a valid email address"
	}

	priority, err := ParsePriority(r.Priority)
	if err != nil {
		details["priority"] = err.Error()
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		details["status"] = err.Error()
	}
	department, err := ParseDepartment(r.Department)
	if err != nil {
		details["department"] = err.Error()
	}

	if len(details) > 0 {
		return nil, details
	}

	return &domain.Ticket{
		FullName:    r.FullName,
		PhoneNumber: r.PhoneNumber,
		Email:       r.Email,
		Reason:      r.Reason,
		Priority:    priority,
		Status:      status,
		AssignedTo:  r.AssignedTo,
		ReportedBy:  r.ReportedBy,
		Department:  department,
	}, nil
}

// UpdateTicketRequest is a partial ticket payload; nil fields are left
// untouched by the update.
type UpdateTicketRequest struct {
	FullName    *string `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber"`
	Email       *string `json:"email"`
	Reason      *string `json:"reason"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	AssignedTo  *string `json:"assignedTo"`
	ReportedBy  *string `json:"reportedBy"`
	Department  *string `json:"department"`
}

// ApplyTo merges the present fields onto an existing ticket. Absent fields
// retain the ticket's prior values.
func (r UpdateTicketRequest) ApplyTo(ticket *domain.Ticket) map[string]any {
	details := map[string]any{}

	if r.FullName != nil {
		requireString(details, "fullName", *r.FullName)
		ticket.FullName = *r.FullName
	}
	if r.PhoneNumber != nil {
		requireString(details, "phoneNumber", *r.PhoneNumber)
		ticket.PhoneNumber = *r.PhoneNumber
	}
	if r.Email != nil {
		if _, err := mail.ParseAddress(*r.Email); err != nil {
			details["email"] = "must be a valid email address"
		}
		ticket.Email = *r.Email
	}
	if r.Reason != nil {
		requireString(details, "reason", *r.Reason)
		ticket.Reason = *r.Reason
	}
	if r.Priority != nil {
		priority, err := ParsePriority(*r.Priority)
		if err != nil {
			details["priority"] = err.Error()
		} else {
			ticket.Priority = priority
		}
	}
	if r.Status != nil {
		status, err := ParseStatus(*r.Status)
		if err != nil {
			details["status"] = err.Error()
		} else {
			ticket.Status = status
		}
	}
	if r.AssignedTo != nil {
		requireString(details, "assignedTo", *r.AssignedTo)
		ticket.AssignedTo = *r.AssignedTo
	}
	if r.ReportedBy != nil {
		requireString(details, "reportedBy", *r.ReportedBy)
		ticket.ReportedBy = *r.ReportedBy
	}
	if r.Department != nil {
		department, err := ParseDepartment(*r.Department)
		if err != nil {
			details["department"] = err.Error()
		} else {
			ticket.Department = department
		}
	}

	if len(details) > 0 {
		return details
	}
	return nil
}

// CreateNoteRequest carries a new note. Author is a plain label supplied by
// the client, not an authenticated identity.
type CreateNoteRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// Validate reports field-level problems, nil when the payload is acceptable.
func (r CreateNoteRequest) Validate() map[string]any {
	details := map[string]any{}
	requireString(details, "content", r.Content)
	requireString(details, "author", r.Author)
	if len(details) > 0 {
		return details
	}
	return nil
}

// TicketResponse is the API projection of a stored ticket.
type TicketResponse struct {
	ID          string         `json:"id"`
	FullName    string         `json:"fullName"`
	PhoneNumber string         `json:"phoneNumber"`
	Email       string         `json:"email"`
	Reason      string         `json:"reason"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	AssignedTo  string         `json:"assignedTo"`
	ReportedBy  string         `json:"reportedBy"`
	Department  string         `json:"department"`
	CreatedOn   string         `json:"createdOn"`
	Notes       []NoteResponse `json:"notes"`
}

// NoteResponse is the API projection of a note.
type NoteResponse struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
}

// ToAPITicket projects a stored ticket into the response shape: enums become
// display strings, timestamps ISO-8601 UTC, notes newest-first. The sort is
// stable so equal timestamps keep their stored order. Pure; the input ticket
// is not modified.
func ToAPITicket(ticket *domain.Ticket) TicketResponse {
	notes := make([]domain.Note, len(ticket.Notes))
	copy(notes, ticket.Notes)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp.After(notes[j].Timestamp)
	})

	noteResponses := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		noteResponses = append(noteResponses, ToAPINote(&note))
	}

	return TicketResponse{
		ID:          ticket.ID,
		FullName:    ticket.FullName,
		PhoneNumber: ticket.PhoneNumber,
		Email:       ticket.Email,
		Reason:      ticket.Reason,
		Priority:    PriorityString(ticket.Priority),
		Status:      StatusString(ticket.Status),
		AssignedTo:  ticket.AssignedTo,
		ReportedBy:  ticket.ReportedBy,
		Department:  DepartmentString(ticket.Department),
		CreatedOn:   ticket.CreatedOn.UTC().Format(time.RFC3339),
		Notes:       noteResponses,
	}
}

// ToAPINote projects a stored note.
func ToAPINote(note *domain.Note) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		Content:   note.Content,
		Author:    note.Author,
		Timestamp: note.Timestamp.UTC().Format(time.RFC3339),
	}
}

func requireString(details map[string]any, field, value string) {
	if strings.TrimSpace(value) == "" {
		details[field] = "is required"
	}
}
