package dto

import (
	"fmt"

	"github.com/opsdesk/callback-service/internal/domain"
)

// The API speaks the display strings the frontend already renders; storage
// uses enum-safe identifiers. The tables below are total in both directions
// for every enum member (enums_test.go asserts the bijection).

var statusToStorage = map[string]domain.TicketStatus{
	"Open Call":   domain.TicketStatusOpenCall,
	"In Progress": domain.TicketStatusInProgress,
	"Closed":      domain.TicketStatusClosed,
}

var statusFromStorage = map[domain.TicketStatus]string{
	domain.TicketStatusOpenCall:   "Open Call",
	domain.TicketStatusInProgress: "In Progress",
	domain.TicketStatusClosed:     "Closed",
}

var priorityToStorage = map[string]domain.TicketPriority{
	"Low":    domain.TicketPriorityLow,
	"Normal": domain.TicketPriorityNormal,
	"High":   domain.TicketPriorityHigh,
}

var priorityFromStorage = map[domain.TicketPriority]string{
	domain.TicketPriorityLow:    "Low",
	domain.TicketPriorityNormal: "Normal",
	domain.TicketPriorityHigh:   "High",
}

var departmentToStorage = map[string]domain.Department{
	"CRP":                 domain.DepartmentCRP,
	"Education/Migration": domain.DepartmentEducationMigration,
	"Skill Assessment":    domain.DepartmentSkillAssessment,
}

var departmentFromStorage = map[domain.Department]string{
	domain.DepartmentCRP:                "CRP",
	domain.DepartmentEducationMigration: "Education/Migration",
	domain.DepartmentSkillAssessment:    "Skill Assessment",
}

// ParseStatus maps an API status string to its storage value. Unknown values
// are rejected, never coerced.
func ParseStatus(value string) (domain.TicketStatus, error) {
	status, ok := statusToStorage[value]
	if !ok {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return status, nil
}

// ParsePriority maps an API priority string to its storage value.
func ParsePriority(value string) (domain.TicketPriority, error) {
	priority, ok := priorityToStorage[value]
	if !ok {
		return "", fmt.Errorf("unknown priority %q", value)
	}
	return priority, nil
}

// ParseDepartment maps an API department string to its storage value.
func ParseDepartment(value string) (domain.Department, error) {
	department, ok := departmentToStorage[value]
	if !ok {
		return "", fmt.Errorf("unknown department %q", value)
	}
	return department, nil
}

// StatusString maps a storage status to its API string.
func StatusString(status domain.TicketStatus) string {
	return statusFromStorage[status]
}

// PriorityString maps a storage priority to its API string.
func PriorityString(priority domain.TicketPriority) string {
	return priorityFromStorage[priority]
}

// DepartmentString maps a storage department to its API string.
func DepartmentString(department domain.Department) string {
	return departmentFromStorage[department]
}
