package group

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/edufarm/edufarm/core"
)

const joinCodeLen = 8

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	TeacherID string    `json:"teacher_id"`
	JoinCode  string    `json:"join_code,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Member struct {
	GroupID   string    `json:"group_id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name,omitempty"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	JoinedAt  time.Time `json:"joined_at"` // UTC
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name    string `json:"name" validate:"required,notblank"`
	Subject string `json:"subject" validate:"required,notblank"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Subject = core.CleanString(ng.Subject, true /* lower */)
	return validate.Struct(ng)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
type UpdateGroup struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

func (ug *UpdateGroup) Validate(orig Group) {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	if subj := core.CleanString(ug.Subject, true /* lower */); subj != "" {
		ug.Subject = subj
	} else {
		ug.Subject = orig.Subject
	}
}

type JoinGroup struct {
	Code string `json:"code" validate:"required,len=8,hexadecimal"`
}

func (jg *JoinGroup) Validate(validate *validator.Validate) error {
	jg.Code = strings.ToUpper(core.CleanString(jg.Code))
	return validate.Struct(jg)
}

// newJoinCode returns 8 upper-case hex characters.
func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:joinCodeLen])
}

// Checker answers membership questions for the other domains.
type Checker interface {
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
	IsTeacherOf(ctx context.Context, groupID, teacherID string) (bool, error)
}
