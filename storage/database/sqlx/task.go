package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufarm/edufarm/core/task"
)

const (
	taskColumns = `id, group_id, teacher_id, subject, title, description, due_at, max_score,
		reward_coins, reward_xp, late_penalty_percent, created_at, updated_at`
	submissionColumns = `id, task_id, student_id, content, attachment_key, status, late, score, feedback,
		coins_awarded, xp_awarded, submitted_at, graded_at`
	commentColumns = `id, submission_id, author_id, body, created_at`
)

type taskRow struct {
	ID                 string    `db:"id"`
	GroupID            string    `db:"group_id"`
	TeacherID          string    `db:"teacher_id"`
	Subject            string    `db:"subject"`
	Title              string    `db:"title"`
	Description        string    `db:"description"`
	DueAt              null.Time `db:"due_at"`
	MaxScore           int       `db:"max_score"`
	RewardCoins        int       `db:"reward_coins"`
	RewardXP           int       `db:"reward_xp"`
	LatePenaltyPercent int       `db:"late_penalty_percent"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func newTaskRow(t task.Task) taskRow {
	return taskRow{
		ID:                 t.ID,
		GroupID:            t.GroupID,
		TeacherID:          t.TeacherID,
		Subject:            t.Subject,
		Title:              t.Title,
		Description:        t.Description,
		DueAt:              null.TimeFromPtr(utcPtr(t.DueAt)),
		MaxScore:           t.MaxScore,
		RewardCoins:        t.RewardCoins,
		RewardXP:           t.RewardXP,
		LatePenaltyPercent: t.LatePenaltyPercent,
		CreatedAt:          t.CreatedAt.UTC(),
		UpdatedAt:          t.UpdatedAt.UTC(),
	}
}

func (r taskRow) task() task.Task {
	return task.Task{
		ID:                 r.ID,
		GroupID:            r.GroupID,
		TeacherID:          r.TeacherID,
		Subject:            r.Subject,
		Title:              r.Title,
		Description:        r.Description,
		DueAt:              utcPtr(r.DueAt.Ptr()),
		MaxScore:           r.MaxScore,
		RewardCoins:        r.RewardCoins,
		RewardXP:           r.RewardXP,
		LatePenaltyPercent: r.LatePenaltyPercent,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID            string      `db:"id"`
	TaskID        string      `db:"task_id"`
	StudentID     string      `db:"student_id"`
	Content       string      `db:"content"`
	AttachmentKey null.String `db:"attachment_key"`
	Status        string      `db:"status"`
	Late          bool        `db:"late"`
	Score         null.Int    `db:"score"`
	Feedback      null.String `db:"feedback"`
	CoinsAwarded  int         `db:"coins_awarded"`
	XPAwarded     int         `db:"xp_awarded"`
	SubmittedAt   time.Time   `db:"submitted_at"`
	GradedAt      null.Time   `db:"graded_at"`
}

func newSubmissionRow(sub task.Submission) submissionRow {
	r := submissionRow{
		ID:            sub.ID,
		TaskID:        sub.TaskID,
		StudentID:     sub.StudentID,
		Content:       sub.Content,
		AttachmentKey: null.NewString(sub.AttachmentKey, sub.AttachmentKey != ""),
		Status:        sub.Status,
		Late:          sub.Late,
		Feedback:      null.NewString(sub.Feedback, sub.Feedback != ""),
		CoinsAwarded:  sub.CoinsAwarded,
		XPAwarded:     sub.XPAwarded,
		SubmittedAt:   sub.SubmittedAt.UTC(),
		GradedAt:      null.TimeFromPtr(utcPtr(sub.GradedAt)),
	}
	if sub.Score != nil {
		r.Score = null.IntFrom(*sub.Score)
	}
	return r
}

func (r submissionRow) submission() task.Submission {
	sub := task.Submission{
		ID:            r.ID,
		TaskID:        r.TaskID,
		StudentID:     r.StudentID,
		Content:       r.Content,
		AttachmentKey: r.AttachmentKey.String,
		Status:        r.Status,
		Late:          r.Late,
		Feedback:      r.Feedback.String,
		CoinsAwarded:  r.CoinsAwarded,
		XPAwarded:     r.XPAwarded,
		SubmittedAt:   r.SubmittedAt.UTC(),
		GradedAt:      utcPtr(r.GradedAt.Ptr()),
	}
	if r.Score.Valid {
		score := r.Score.Int
		sub.Score = &score
	}
	return sub
}

type commentRow struct {
	ID           string    `db:"id"`
	SubmissionID string    `db:"submission_id"`
	AuthorID     string    `db:"author_id"`
	Body         string    `db:"body"`
	CreatedAt    time.Time `db:"created_at"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = uuid.New().String()
	q := `INSERT INTO task (` + taskColumns + `) VALUES (
		:id, :group_id, :teacher_id, :subject, :title, :description, :due_at, :max_score,
		:reward_coins, :reward_xp, :late_penalty_percent, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTaskRow(t)); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return newTaskRow(t).task(), nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	if !validID(id) {
		return task.Task{}, task.ErrNotFound
	}
	var r taskRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "getting task")
	}
	return r.task(), nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	q := `UPDATE task SET subject = :subject, title = :title, description = :description, due_at = :due_at,
			max_score = :max_score, reward_coins = :reward_coins, reward_xp = :reward_xp,
			late_penalty_percent = :late_penalty_percent, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newTaskRow(t))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return newTaskRow(t).task(), nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	if !validID(id) {
		return task.ErrNotFound
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM task WHERE id = $1`, id)
	return errors.Wrap(err, "deleting task")
}

func (repo *taskRepository) ListTasks(ctx context.Context, filter task.QueryFilter, groupIDs ...string) ([]task.Task, error) {
	var w where
	w.add("group_id = ANY(?::uuid[])", pq.StringArray(groupIDs))
	if filter.Subject != "" {
		w.add("subject = ?", filter.Subject)
	}
	q := `SELECT ` + taskColumns + ` FROM task` + w.String() + ` ORDER BY created_at DESC`

	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (repo *taskRepository) SaveSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	q := `INSERT INTO submission (` + submissionColumns + `) VALUES (
			:id, :task_id, :student_id, :content, :attachment_key, :status, :late, :score, :feedback,
			:coins_awarded, :xp_awarded, :submitted_at, :graded_at)
		ON CONFLICT (task_id, student_id) DO UPDATE SET
			content = EXCLUDED.content, attachment_key = EXCLUDED.attachment_key, status = EXCLUDED.status,
			late = EXCLUDED.late, submitted_at = EXCLUDED.submitted_at
		WHERE submission.status <> 'graded'
		RETURNING ` + submissionColumns
	rows, err := repo.db.NamedQueryContext(ctx, q, newSubmissionRow(sub))
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "saving submission")
	}
	defer rows.Close()

	var r submissionRow
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return task.Submission{}, errors.Wrap(err, "saving submission")
		}
		// the conflicting row is graded
		return task.Submission{}, task.ErrAlreadyGraded
	}
	if err := rows.StructScan(&r); err != nil {
		return task.Submission{}, errors.Wrap(err, "scanning submission")
	}
	return r.submission(), nil
}

func (repo *taskRepository) GradeSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	q := `UPDATE submission SET status = :status, score = :score, feedback = :feedback,
			coins_awarded = :coins_awarded, xp_awarded = :xp_awarded, graded_at = :graded_at
		WHERE id = :id AND status <> 'graded'`
	res, err := repo.db.NamedExecContext(ctx, q, newSubmissionRow(sub))
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "grading submission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "grading submission")
	}
	if n == 0 {
		return task.Submission{}, task.ErrAlreadyGraded
	}
	return newSubmissionRow(sub).submission(), nil
}

func (repo *taskRepository) UpdateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	q := `UPDATE submission SET status = :status, feedback = :feedback WHERE id = :id AND status <> 'graded'`
	res, err := repo.db.NamedExecContext(ctx, q, newSubmissionRow(sub))
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "updating submission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n == 0 {
		// missing or graded
		var status string
		err := repo.db.GetContext(ctx, &status, `SELECT status FROM submission WHERE id = $1`, sub.ID)
		if err != nil {
			return task.Submission{}, trapNoRowsErr(err, task.ErrSubmissionNotFound, "updating submission")
		}
		return task.Submission{}, task.ErrAlreadyGraded
	}
	return newSubmissionRow(sub).submission(), nil
}

func (repo *taskRepository) GetSubmission(ctx context.Context, id string) (task.Submission, error) {
	if !validID(id) {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	var r submissionRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+submissionColumns+` FROM submission WHERE id = $1`, id); err != nil {
		return task.Submission{}, trapNoRowsErr(err, task.ErrSubmissionNotFound, "getting submission")
	}
	return r.submission(), nil
}

func (repo *taskRepository) GetStudentSubmission(ctx context.Context, taskID, studentID string) (task.Submission, error) {
	if !validID(taskID) || !validID(studentID) {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	var r submissionRow
	q := `SELECT ` + submissionColumns + ` FROM submission WHERE task_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &r, q, taskID, studentID); err != nil {
		return task.Submission{}, trapNoRowsErr(err, task.ErrSubmissionNotFound, "getting submission")
	}
	return r.submission(), nil
}

func (repo *taskRepository) listSubmissions(ctx context.Context, cond string, arg interface{}) ([]task.Submission, error) {
	var rows []submissionRow
	q := `SELECT ` + submissionColumns + ` FROM submission WHERE ` + cond + ` ORDER BY submitted_at`
	if err := repo.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	subs := make([]task.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (repo *taskRepository) ListTaskSubmissions(ctx context.Context, taskIDs ...string) ([]task.Submission, error) {
	if len(taskIDs) == 0 {
		return []task.Submission{}, nil
	}
	return repo.listSubmissions(ctx, "task_id = ANY($1::uuid[])", pq.StringArray(taskIDs))
}

func (repo *taskRepository) ListStudentSubmissions(ctx context.Context, studentID string) ([]task.Submission, error) {
	if !validID(studentID) {
		return []task.Submission{}, nil
	}
	return repo.listSubmissions(ctx, "student_id = $1", studentID)
}

func (repo *taskRepository) CreateComment(ctx context.Context, c task.Comment) (task.Comment, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = c.CreatedAt.UTC()
	q := `INSERT INTO comment (` + commentColumns + `) VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, q, c.ID, c.SubmissionID, c.AuthorID, c.Body, c.CreatedAt); err != nil {
		return task.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return c, nil
}

func (repo *taskRepository) ListComments(ctx context.Context, submissionID string) ([]task.Comment, error) {
	var rows []commentRow
	if validID(submissionID) {
		q := `SELECT ` + commentColumns + ` FROM comment WHERE submission_id = $1 ORDER BY created_at`
		if err := repo.db.SelectContext(ctx, &rows, q, submissionID); err != nil {
			return nil, errors.Wrap(err, "listing comments")
		}
	}
	comments := make([]task.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, task.Comment{
			ID:           r.ID,
			SubmissionID: r.SubmissionID,
			AuthorID:     r.AuthorID,
			Body:         r.Body,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return comments, nil
}
