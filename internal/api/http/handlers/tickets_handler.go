package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/opsdesk/callback-service/internal/api/dto"
	"github.com/opsdesk/callback-service/internal/domain"
	"github.com/opsdesk/callback-service/internal/repository"
	"github.com/opsdesk/callback-service/internal/service"
	apperrors "github.com/opsdesk/callback-service/pkg/util/errorutil"
)

// TicketsHandler manages the callback-request endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}

	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.ToAPITicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToAPITicket(ticket)})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, details := req.Validate()
	if details != nil {
		return apperrors.NewValidationError("invalid ticket payload", details)
	}

	if err := h.service.CreateTicket(c.UserContext(), ticket); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ToAPITicket(ticket)})
}

// UpdateTicket PATCH /tickets/:id. Only present fields change.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	// Load first so a missing ticket is a 404, not a silent upsert.
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}

	if details := req.ApplyTo(ticket); details != nil {
		return apperrors.NewValidationError("invalid ticket payload", details)
	}

	if err := h.service.UpdateTicket(c.UserContext(), ticket); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToAPITicket(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.DeleteTicket(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddNote POST /tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req dto.CreateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if details := req.Validate(); details != nil {
		return apperrors.NewValidationError("invalid note payload", details)
	}

	note, err := h.service.AddNote(c.UserContext(), id, req.Content, req.Author)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ToAPINote(note)})
}

// DeleteNote DELETE /tickets/:ticketId/notes/:noteId.
func (h *TicketsHandler) DeleteNote(c *fiber.Ctx) error {
	ticketID, err := parseID(c, "ticketId")
	if err != nil {
		return err
	}
	noteID, err := parseID(c, "noteId")
	if err != nil {
		return err
	}

	if err := h.service.DeleteNote(c.UserContext(), ticketID, noteID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statsResponse(stats)})
}

func parseID(c *fiber.Ctx, param string) (string, error) {
	id := c.Params(param)
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewValidationError("invalid id", map[string]any{param: "must be a uuid"})
	}
	return id, nil
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		AssignedTo: c.Query("assignedTo"),
		Search:     c.Query("search"),
	}

	details := map[string]any{}
	if value := c.Query("status"); value != "" {
		status, err := dto.ParseStatus(value)
		if err != nil {
			details["status"] = err.Error()
		} else {
			filter.Status = &status
		}
	}
	if value := c.Query("priority"); value != "" {
		priority, err := dto.ParsePriority(value)
		if err != nil {
			details["priority"] = err.Error()
		} else {
			filter.Priority = &priority
		}
	}
	if value := c.Query("department"); value != "" {
		department, err := dto.ParseDepartment(value)
		if err != nil {
			details["department"] = err.Error()
		} else {
			filter.Department = &department
		}
	}

	if len(details) > 0 {
		return filter, apperrors.NewValidationError("invalid filter", details)
	}
	return filter, nil
}

var allStatuses = []domain.TicketStatus{
	domain.TicketStatusOpenCall,
	domain.TicketStatusInProgress,
	domain.TicketStatusClosed,
}

var allDepartments = []domain.Department{
	domain.DepartmentCRP,
	domain.DepartmentEducationMigration,
	domain.DepartmentSkillAssessment,
}

// statsResponse projects the aggregates with every status/department present,
// zero-filled, keyed by the API display strings.
func statsResponse(stats *service.TicketStats) fiber.Map {
	byStatus := fiber.Map{}
	byStatusDepartment := fiber.Map{}
	today := fiber.Map{}
	thisWeek := fiber.Map{}

	for _, status := range allStatuses {
		key := dto.StatusString(status)
		byStatus[key] = stats.ByStatus[status]
		today[key] = stats.Today[status]
		thisWeek[key] = stats.ThisWeek[status]

		departments := fiber.Map{}
		for _, department := range allDepartments {
			departments[dto.DepartmentString(department)] = stats.ByStatusDepartment[status][department]
		}
		byStatusDepartment[key] = departments
	}

	return fiber.Map{
		"byStatus":           byStatus,
		"byStatusDepartment": byStatusDepartment,
		"today":              today,
		"thisWeek":           thisWeek,
	}
}
