package task

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("task not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrForbidden          = errors.New("you are not allowed to access this task")
	ErrEmptySubmission    = errors.New("content or attachment is required")
	ErrAlreadyGraded      = core.NewRuleError("submission already graded")
	ErrScoreTooHigh       = core.NewRuleError("score exceeds the task's max score")
)

type (
	// Rewarder credits coins & XP earned on graded submissions.
	Rewarder interface {
		Reward(ctx context.Context, userID string, coins, xp int, reason string) error
	}

	// UserGetter finds the students to notify.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		// GetTask returns ErrNotFound if no Task has this ID.
		GetTask(ctx context.Context, id string) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error
		// ListTasks returns the tasks of the given groups, most recent first.
		ListTasks(ctx context.Context, filter QueryFilter, groupIDs ...string) ([]Task, error)

		// SaveSubmission inserts or replaces the Submission of (TaskID, StudentID).
		// A graded Submission is never replaced: it returns ErrAlreadyGraded.
		SaveSubmission(ctx context.Context, sub Submission) (Submission, error)
		// GradeSubmission saves the grading fields unless the Submission is already graded,
		// in which case it returns ErrAlreadyGraded.
		GradeSubmission(ctx context.Context, sub Submission) (Submission, error)
		// UpdateSubmission saves Status & Feedback. It returns ErrAlreadyGraded if the Submission is graded.
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
		// GetSubmission returns ErrSubmissionNotFound if no Submission has this ID.
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// GetStudentSubmission returns ErrSubmissionNotFound if the student has not submitted.
		GetStudentSubmission(ctx context.Context, taskID, studentID string) (Submission, error)
		ListTaskSubmissions(ctx context.Context, taskIDs ...string) ([]Submission, error)
		ListStudentSubmissions(ctx context.Context, studentID string) ([]Submission, error)

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		ListComments(ctx context.Context, submissionID string) ([]Comment, error)
	}

	Service interface {
		CreateTask(ctx context.Context, teacher user.User, nt NewTask) (Task, error)
		GetTask(ctx context.Context, actor user.User, id string) (StudentTask, error)
		UpdateTask(ctx context.Context, teacher user.User, id string, ut UpdateTask) (Task, error)
		DeleteTask(ctx context.Context, teacher user.User, id string) error
		ListTasks(ctx context.Context, actor user.User, filter QueryFilter) ([]StudentTask, error)

		Submit(ctx context.Context, student user.User, taskID string, ns NewSubmission) (Submission, error)
		ListSubmissions(ctx context.Context, teacher user.User, taskID string) ([]Submission, error)
		Grade(ctx context.Context, teacher user.User, subID string, gs GradeSubmission) (Submission, error)
		Return(ctx context.Context, teacher user.User, subID string, rs ReturnSubmission) (Submission, error)

		AddComment(ctx context.Context, author user.User, subID string, nc NewComment) (Comment, error)
		ListComments(ctx context.Context, actor user.User, subID string) ([]Comment, error)

		TaskStats(ctx context.Context, teacher user.User, taskID string) (TaskStats, error)
		GroupStats(ctx context.Context, teacher user.User, groupID string) (GroupStats, error)
		StudentSummary(ctx context.Context, student user.User) (StudentSummary, error)
	}

	service struct {
		repo     Repository
		groups   group.Repository
		users    UserGetter
		rewarder Rewarder
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	repo Repository,
	groups group.Repository,
	users UserGetter,
	rewarder Rewarder,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		groups:   groups,
		users:    users,
		rewarder: rewarder,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// teacherGroup checks that `teacher` teaches the group. Admins teach every group.
func (svc *service) teacherGroup(ctx context.Context, teacher user.User, groupID string) (group.Group, error) {
	grp, err := svc.groups.GetGroup(ctx, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if grp.TeacherID != teacher.ID && !teacher.IsAdmin() {
		return group.Group{}, ErrForbidden
	}
	return grp, nil
}

// ownedTask fetches the Task & checks that `teacher` teaches its group.
func (svc *service) ownedTask(ctx context.Context, teacher user.User, id string) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if _, err := svc.teacherGroup(ctx, teacher, t.GroupID); err != nil {
		return Task{}, err
	}
	return t, nil
}

// assignedTask fetches the Task & checks that `student` is a member of its group.
// Tasks of other groups are reported as not found.
func (svc *service) assignedTask(ctx context.Context, student user.User, id string) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	ok, err := svc.groups.IsMember(ctx, t.GroupID, student.ID)
	if err != nil {
		return Task{}, errors.Wrap(err, "checking membership")
	}
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (svc *service) CreateTask(ctx context.Context, teacher user.User, nt NewTask) (Task, error) {
	grp, err := svc.teacherGroup(ctx, teacher, nt.GroupID)
	if err != nil {
		return Task{}, err
	}
	now := core.NowFunc()
	t := Task{
		GroupID:            grp.ID,
		TeacherID:          teacher.ID,
		Subject:            nt.Subject,
		Title:              nt.Title,
		Description:        nt.Description,
		DueAt:              nt.DueAt,
		MaxScore:           nt.MaxScore,
		RewardCoins:        nt.RewardCoins,
		RewardXP:           nt.RewardXP,
		LatePenaltyPercent: nt.LatePenaltyPercent,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if t.Subject == "" {
		t.Subject = grp.Subject
	}
	t, err = svc.repo.CreateTask(ctx, t)
	return t, errors.Wrap(err, "creating task")
}

func (svc *service) GetTask(ctx context.Context, actor user.User, id string) (StudentTask, error) {
	if actor.IsTeacher() || actor.IsAdmin() {
		t, err := svc.ownedTask(ctx, actor, id)
		return StudentTask{Task: t}, err
	}
	t, err := svc.assignedTask(ctx, actor, id)
	if err != nil {
		return StudentTask{}, err
	}
	st := StudentTask{Task: t}
	sub, err := svc.repo.GetStudentSubmission(ctx, id, actor.ID)
	switch errors.Cause(err) {
	case nil:
		st.Submission = &sub
	case ErrSubmissionNotFound:
	default:
		return StudentTask{}, errors.Wrap(err, "getting submission")
	}
	return st, nil
}

func (svc *service) UpdateTask(ctx context.Context, teacher user.User, id string, ut UpdateTask) (Task, error) {
	t, err := svc.ownedTask(ctx, teacher, id)
	if err != nil {
		return Task{}, err
	}
	ut.apply(&t)
	t.UpdatedAt = core.NowFunc()
	t, err = svc.repo.UpdateTask(ctx, t)
	return t, errors.Wrap(err, "updating task")
}

func (svc *service) DeleteTask(ctx context.Context, teacher user.User, id string) error {
	if _, err := svc.ownedTask(ctx, teacher, id); err != nil {
		return err
	}
	return svc.repo.DeleteTask(ctx, id)
}

func (svc *service) ListTasks(ctx context.Context, actor user.User, filter QueryFilter) ([]StudentTask, error) {
	var (
		grps []group.Group
		err  error
	)
	if actor.IsTeacher() {
		grps, err = svc.groups.ListTeacherGroups(ctx, actor.ID)
	} else {
		grps, err = svc.groups.ListStudentGroups(ctx, actor.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "listing groups")
	}

	groupIDs := make([]string, 0, len(grps))
	for _, grp := range grps {
		if filter.GroupID == "" || filter.GroupID == grp.ID {
			groupIDs = append(groupIDs, grp.ID)
		}
	}
	if len(groupIDs) == 0 {
		return []StudentTask{}, nil
	}

	tasks, err := svc.repo.ListTasks(ctx, filter, groupIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	var subs map[string]Submission
	if !actor.IsTeacher() {
		studentSubs, err := svc.repo.ListStudentSubmissions(ctx, actor.ID)
		if err != nil {
			return nil, errors.Wrap(err, "listing submissions")
		}
		subs = make(map[string]Submission, len(studentSubs))
		for _, sub := range studentSubs {
			subs[sub.TaskID] = sub
		}
	}

	out := make([]StudentTask, 0, len(tasks))
	for _, t := range tasks {
		st := StudentTask{Task: t}
		if sub, ok := subs[t.ID]; ok {
			st.Submission = &sub
		}
		out = append(out, st)
	}
	return out, nil
}

func (svc *service) Submit(ctx context.Context, student user.User, taskID string, ns NewSubmission) (Submission, error) {
	t, err := svc.assignedTask(ctx, student, taskID)
	if err != nil {
		return Submission{}, err
	}

	now := core.NowFunc()
	sub, err := svc.repo.GetStudentSubmission(ctx, taskID, student.ID)
	switch errors.Cause(err) {
	case nil:
		if sub.Status == StatusGraded {
			return Submission{}, ErrAlreadyGraded
		}
	case ErrSubmissionNotFound:
		sub = Submission{TaskID: taskID, StudentID: student.ID}
	default:
		return Submission{}, errors.Wrap(err, "getting submission")
	}

	sub.Content = ns.Content
	sub.AttachmentKey = ns.AttachmentKey
	sub.Status = StatusSubmitted
	sub.Late = t.IsLate(now)
	sub.SubmittedAt = now
	sub, err = svc.repo.SaveSubmission(ctx, sub)
	return sub, errors.Wrap(err, "saving submission")
}

func (svc *service) ListSubmissions(ctx context.Context, teacher user.User, taskID string) ([]Submission, error) {
	if _, err := svc.ownedTask(ctx, teacher, taskID); err != nil {
		return nil, err
	}
	return svc.repo.ListTaskSubmissions(ctx, taskID)
}

// ownedSubmission fetches the Submission & its Task, checking that `teacher` teaches the Task's group.
func (svc *service) ownedSubmission(ctx context.Context, teacher user.User, subID string) (Submission, Task, error) {
	sub, err := svc.repo.GetSubmission(ctx, subID)
	if err != nil {
		return Submission{}, Task{}, err
	}
	t, err := svc.ownedTask(ctx, teacher, sub.TaskID)
	if err != nil {
		return Submission{}, Task{}, err
	}
	return sub, t, nil
}

func (svc *service) Grade(ctx context.Context, teacher user.User, subID string, gs GradeSubmission) (Submission, error) {
	sub, t, err := svc.ownedSubmission(ctx, teacher, subID)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusGraded {
		return Submission{}, ErrAlreadyGraded
	}
	score := *gs.Score
	if score > t.MaxScore {
		return Submission{}, ErrScoreTooHigh
	}

	now := core.NowFunc()
	sub.Status = StatusGraded
	sub.Score = &score
	sub.Feedback = gs.Feedback
	sub.CoinsAwarded, sub.XPAwarded = t.Reward(score, sub.Late)
	sub.GradedAt = &now

	// the reward is credited first, then taken back if the submission cannot be graded
	rewarded := sub.CoinsAwarded > 0 || sub.XPAwarded > 0
	reason := "task:" + t.ID
	if rewarded {
		if err := svc.rewarder.Reward(ctx, sub.StudentID, sub.CoinsAwarded, sub.XPAwarded, reason); err != nil {
			return Submission{}, errors.Wrap(err, "rewarding student")
		}
	}
	graded, err := svc.repo.GradeSubmission(ctx, sub)
	if err != nil {
		if rewarded {
			if rerr := svc.rewarder.Reward(ctx, sub.StudentID, -sub.CoinsAwarded, -sub.XPAwarded, reason+":revoked"); rerr != nil {
				svc.logger.Error("task.Grade: revoking reward of "+sub.ID+": "+rerr.Error(), rerr)
			}
		}
		return Submission{}, errors.Wrap(err, "grading submission")
	}
	sub = graded

	svc.notifyGraded(ctx, t, sub)
	return sub, nil
}

func (svc *service) notifyGraded(ctx context.Context, t Task, sub Submission) {
	student, err := svc.users.GetByID(ctx, sub.StudentID)
	if err != nil {
		svc.logger.Error("task.notifyGraded: "+err.Error(), err)
		return
	}
	if student.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Your submission was graded",
		TemplateName: "submission_graded",
		TemplateData: map[string]interface{}{
			"TaskTitle": t.Title,
			"Score":     *sub.Score,
			"MaxScore":  t.MaxScore,
			"Feedback":  sub.Feedback,
			"Coins":     sub.CoinsAwarded,
			"XP":        sub.XPAwarded,
		},
	})
}

func (svc *service) Return(ctx context.Context, teacher user.User, subID string, rs ReturnSubmission) (Submission, error) {
	sub, _, err := svc.ownedSubmission(ctx, teacher, subID)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusGraded {
		return Submission{}, ErrAlreadyGraded
	}
	sub.Status = StatusReturned
	sub.Feedback = rs.Feedback
	sub, err = svc.repo.UpdateSubmission(ctx, sub)
	return sub, errors.Wrap(err, "returning submission")
}

// visibleSubmission checks that `actor` submitted it or teaches its group.
func (svc *service) visibleSubmission(ctx context.Context, actor user.User, subID string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, subID)
	if err != nil {
		return Submission{}, err
	}
	if sub.StudentID == actor.ID {
		return sub, nil
	}
	if _, _, err := svc.ownedSubmission(ctx, actor, subID); err != nil {
		if errors.Cause(err) == ErrForbidden {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, err
	}
	return sub, nil
}

func (svc *service) AddComment(ctx context.Context, author user.User, subID string, nc NewComment) (Comment, error) {
	if _, err := svc.visibleSubmission(ctx, author, subID); err != nil {
		return Comment{}, err
	}
	c, err := svc.repo.CreateComment(ctx, Comment{
		SubmissionID: subID,
		AuthorID:     author.ID,
		Body:         nc.Body,
		CreatedAt:    core.NowFunc(),
	})
	return c, errors.Wrap(err, "creating comment")
}

func (svc *service) ListComments(ctx context.Context, actor user.User, subID string) ([]Comment, error) {
	if _, err := svc.visibleSubmission(ctx, actor, subID); err != nil {
		return nil, err
	}
	return svc.repo.ListComments(ctx, subID)
}
