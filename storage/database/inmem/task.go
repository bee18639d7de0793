package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/edufarm/edufarm/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = uuid.NewString()
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string) (task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.tasks[t.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	t.GroupID, t.TeacherID, t.CreatedAt = orig.GroupID, orig.TeacherID, orig.CreatedAt
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.tasks, id)
	for subID, sub := range repo.db.submissions {
		if sub.TaskID == id {
			delete(repo.db.submissions, subID)
		}
	}
	return nil
}

func (repo *taskRepository) ListTasks(_ context.Context, filter task.QueryFilter, groupIDs ...string) ([]task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	inGroups := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		inGroups[id] = true
	}
	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tasks {
		if inGroups[t.GroupID] && (filter.Subject == "" || t.Subject == filter.Subject) {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (repo *taskRepository) SaveSubmission(_ context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.TaskID == sub.TaskID && existing.StudentID == sub.StudentID {
			if existing.Status == task.StatusGraded {
				return task.Submission{}, task.ErrAlreadyGraded
			}
			existing.Content = sub.Content
			existing.AttachmentKey = sub.AttachmentKey
			existing.Status = sub.Status
			existing.Late = sub.Late
			existing.SubmittedAt = sub.SubmittedAt
			return *existing, nil
		}
	}
	sub.ID = uuid.NewString()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *taskRepository) GradeSubmission(_ context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	if orig.Status == task.StatusGraded {
		return task.Submission{}, task.ErrAlreadyGraded
	}
	orig.Status = sub.Status
	orig.Score = sub.Score
	orig.Feedback = sub.Feedback
	orig.CoinsAwarded = sub.CoinsAwarded
	orig.XPAwarded = sub.XPAwarded
	orig.GradedAt = sub.GradedAt
	return *orig, nil
}

func (repo *taskRepository) UpdateSubmission(_ context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	if orig.Status == task.StatusGraded {
		return task.Submission{}, task.ErrAlreadyGraded
	}
	orig.Status = sub.Status
	orig.Feedback = sub.Feedback
	return *orig, nil
}

func (repo *taskRepository) GetSubmission(_ context.Context, id string) (task.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) GetStudentSubmission(_ context.Context, taskID, studentID string) (task.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.TaskID == taskID && sub.StudentID == studentID {
			return *sub, nil
		}
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) listSubmissions(match func(sub *task.Submission) bool) []task.Submission {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]task.Submission, 0)
	for _, sub := range repo.db.submissions {
		if match(sub) {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs
}

func (repo *taskRepository) ListTaskSubmissions(_ context.Context, taskIDs ...string) ([]task.Submission, error) {
	ids := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		ids[id] = true
	}
	return repo.listSubmissions(func(sub *task.Submission) bool { return ids[sub.TaskID] }), nil
}

func (repo *taskRepository) ListStudentSubmissions(_ context.Context, studentID string) ([]task.Submission, error) {
	return repo.listSubmissions(func(sub *task.Submission) bool { return sub.StudentID == studentID }), nil
}

func (repo *taskRepository) CreateComment(_ context.Context, c task.Comment) (task.Comment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[c.SubmissionID]; !ok {
		return task.Comment{}, task.ErrSubmissionNotFound
	}
	c.ID = uuid.NewString()
	repo.db.comments = append(repo.db.comments, c)
	return c, nil
}

func (repo *taskRepository) ListComments(_ context.Context, submissionID string) ([]task.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	comments := make([]task.Comment, 0)
	for _, c := range repo.db.comments {
		if c.SubmissionID == submissionID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}
