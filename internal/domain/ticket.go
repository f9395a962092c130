package domain

import "time"

// TicketStatus enumerates lifecycle states as stored in Postgres.
type TicketStatus string

const (
	TicketStatusOpenCall   TicketStatus = "OpenCall"
	TicketStatusInProgress TicketStatus = "InProgress"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketPriority enumerates urgency as stored in Postgres.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityNormal TicketPriority = "Normal"
	TicketPriorityHigh   TicketPriority = "High"
)

// Department enumerates the business units a callback can belong to.
type Department string

const (
	DepartmentCRP                Department = "CRP"
	DepartmentEducationMigration Department = "EducationMigration"
	DepartmentSkillAssessment    Department = "SkillAssessment"
)

// Ticket is the aggregate for callback requests. Notes are loaded with the
// ticket and deleted with it.
type Ticket struct {
	ID          string
	FullName    string
	PhoneNumber string
	Email       string
	Reason      string
	Priority    TicketPriority
	Status      TicketStatus
	AssignedTo  string
	ReportedBy  string
	Department  Department
	CreatedOn   time.Time
	Notes       []Note
}

// Note is a freeform annotation attached to a ticket. Timestamp is assigned at
// creation and never changes.
type Note struct {
	ID        string
	Content   string
	Author    string
	Timestamp time.Time
	TicketID  string
}
