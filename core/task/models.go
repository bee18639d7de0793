package task

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufarm/edufarm/core"
)

// Submission statuses
const (
	StatusSubmitted = "submitted"
	StatusReturned  = "returned"
	StatusGraded    = "graded"
)

type Task struct {
	ID                 string     `json:"id"`
	GroupID            string     `json:"group_id"`
	TeacherID          string     `json:"teacher_id"`
	Subject            string     `json:"subject"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	DueAt              *time.Time `json:"due_at"` // UTC
	MaxScore           int        `json:"max_score"`
	RewardCoins        int        `json:"reward_coins"`
	RewardXP           int        `json:"reward_xp"`
	LatePenaltyPercent int        `json:"late_penalty_percent"`
	CreatedAt          time.Time  `json:"created_at"` // UTC
	UpdatedAt          time.Time  `json:"updated_at"` // UTC
}

// IsLate tells whether a submission made at `at` is past the due date.
func (t Task) IsLate(at time.Time) bool {
	return t.DueAt != nil && at.After(*t.DueAt)
}

// Reward computes the coins & XP earned for `score`.
// Both are proportional to score/MaxScore, reduced by LatePenaltyPercent when late, and rounded half away from zero.
func (t Task) Reward(score int, late bool) (coins, xp int) {
	if t.MaxScore <= 0 {
		return 0, 0
	}
	ratio := float64(score) / float64(t.MaxScore)
	if late {
		ratio *= float64(100-t.LatePenaltyPercent) / 100
	}
	return int(math.Round(float64(t.RewardCoins) * ratio)), int(math.Round(float64(t.RewardXP) * ratio))
}

type Submission struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	StudentID     string     `json:"student_id"`
	Content       string     `json:"content"`
	AttachmentKey string     `json:"attachment_key,omitempty"`
	Status        string     `json:"status"`
	Late          bool       `json:"late"`
	Score         *int       `json:"score"`
	Feedback      string     `json:"feedback,omitempty"`
	CoinsAwarded  int        `json:"coins_awarded"`
	XPAwarded     int        `json:"xp_awarded"`
	SubmittedAt   time.Time  `json:"submitted_at"` // UTC
	GradedAt      *time.Time `json:"graded_at"`    // UTC
}

type Comment struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// StudentTask is a Task as seen by a student: with their own Submission, if any.
type StudentTask struct {
	Task
	Submission *Submission `json:"submission"`
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	GroupID            string     `json:"group_id" validate:"required,uuid"`
	Subject            string     `json:"subject"`
	Title              string     `json:"title" validate:"required,notblank"`
	Description        string     `json:"description"`
	DueAt              *time.Time `json:"due_at"`
	MaxScore           int        `json:"max_score" validate:"required,gt=0"`
	RewardCoins        int        `json:"reward_coins" validate:"gte=0"`
	RewardXP           int        `json:"reward_xp" validate:"gte=0"`
	LatePenaltyPercent int        `json:"late_penalty_percent" validate:"gte=0,lte=100"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Subject = core.CleanString(nt.Subject, true /* lower */)
	nt.Description = core.CleanString(nt.Description)
	if nt.DueAt != nil {
		due := nt.DueAt.UTC()
		nt.DueAt = &due
	}
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// Zero values keep the current ones.
type UpdateTask struct {
	Subject            string     `json:"subject"`
	Title              string     `json:"title"`
	Description        *string    `json:"description"`
	DueAt              *time.Time `json:"due_at"`
	MaxScore           int        `json:"max_score" validate:"gte=0"`
	RewardCoins        *int       `json:"reward_coins" validate:"omitempty,gte=0"`
	RewardXP           *int       `json:"reward_xp" validate:"omitempty,gte=0"`
	LatePenaltyPercent *int       `json:"late_penalty_percent" validate:"omitempty,gte=0,lte=100"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	ut.Subject = core.CleanString(ut.Subject, true /* lower */)
	return validate.Struct(ut)
}

func (ut UpdateTask) apply(t *Task) {
	if ut.Subject != "" {
		t.Subject = ut.Subject
	}
	if ut.Title != "" {
		t.Title = ut.Title
	}
	if ut.Description != nil {
		t.Description = core.CleanString(*ut.Description)
	}
	if ut.DueAt != nil {
		due := ut.DueAt.UTC()
		t.DueAt = &due
	}
	if ut.MaxScore > 0 {
		t.MaxScore = ut.MaxScore
	}
	if ut.RewardCoins != nil {
		t.RewardCoins = *ut.RewardCoins
	}
	if ut.RewardXP != nil {
		t.RewardXP = *ut.RewardXP
	}
	if ut.LatePenaltyPercent != nil {
		t.LatePenaltyPercent = *ut.LatePenaltyPercent
	}
}

type NewSubmission struct {
	Content       string `json:"content"`
	AttachmentKey string `json:"attachment_key"`
}

func (ns *NewSubmission) Validate() error {
	ns.Content = core.CleanString(ns.Content)
	ns.AttachmentKey = core.CleanString(ns.AttachmentKey)
	if ns.Content == "" && ns.AttachmentKey == "" {
		err := ErrEmptySubmission
		return core.NewValidationError(err,
			core.FieldError{Field: "content", Error: err.Error()},
			core.FieldError{Field: "attachment_key", Error: err.Error()},
		)
	}
	return nil
}

type GradeSubmission struct {
	Score    *int   `json:"score" validate:"required,gte=0"`
	Feedback string `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type ReturnSubmission struct {
	Feedback string `json:"feedback" validate:"required,notblank"`
}

func (rs *ReturnSubmission) Validate(validate *validator.Validate) error {
	rs.Feedback = core.CleanString(rs.Feedback)
	return validate.Struct(rs)
}

type NewComment struct {
	Body string `json:"body" validate:"required,notblank"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

type QueryFilter struct {
	GroupID string `query:"group_id"`
	Subject string `query:"subject"`
}

func (qf *QueryFilter) Clean() {
	qf.GroupID = core.CleanString(qf.GroupID)
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
}
