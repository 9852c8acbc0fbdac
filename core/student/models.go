package student

import (
	"context"
	"time"

	"github.com/trezcool/shulebus/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("Student not found")
	ErrParentNotFound = core.NewNotFoundError("Parent not found")
)

type Parent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Student struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"schoolId"`
	ParentID  string    `json:"parentId"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade,omitempty"`
	RFIDTagID *string   `json:"rfidTagId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact is a student along with the parent to notify.
type Contact struct {
	Student Student
	Parent  Parent
}

// Repository is the read side the trip engine needs from the student registry.
// Student and parent CRUD belongs to the registry itself.
type Repository interface {
	CreateParent(ctx context.Context, p Parent, exec ...core.DBExecutor) (Parent, error)
	CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
	GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
	// GetActiveStudentByRFIDTag returns the unique active student carrying tag.
	GetActiveStudentByRFIDTag(ctx context.Context, tag string, exec ...core.DBExecutor) (Student, error)
	GetContact(ctx context.Context, studentID string, exec ...core.DBExecutor) (Contact, error)
}
