package task

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core/user"
)

type TaskStats struct {
	TaskID         string  `json:"task_id"`
	Assigned       int     `json:"assigned"`
	Submitted      int     `json:"submitted"`
	Graded         int     `json:"graded"`
	Late           int     `json:"late"`
	AverageScore   float64 `json:"average_score"`
	AveragePercent float64 `json:"average_percent"`
	CompletionRate float64 `json:"completion_rate"` // submitted / assigned
}

type StudentStats struct {
	StudentID      string  `json:"student_id"`
	Name           string  `json:"name"`
	Username       string  `json:"username"`
	Submitted      int     `json:"submitted"`
	Graded         int     `json:"graded"`
	Late           int     `json:"late"`
	AveragePercent float64 `json:"average_percent"`
	CoinsEarned    int     `json:"coins_earned"`
	XPEarned       int     `json:"xp_earned"`
}

type GroupStats struct {
	GroupID        string         `json:"group_id"`
	Tasks          int            `json:"tasks"`
	CompletionRate float64        `json:"completion_rate"`
	Students       []StudentStats `json:"students"`
}

type StudentSummary struct {
	StudentID      string  `json:"student_id"`
	Groups         int     `json:"groups"`
	Assigned       int     `json:"assigned"`
	Submitted      int     `json:"submitted"`
	Pending        int     `json:"pending"`
	Graded         int     `json:"graded"`
	Late           int     `json:"late"`
	AveragePercent float64 `json:"average_percent"`
	CoinsEarned    int     `json:"coins_earned"`
	XPEarned       int     `json:"xp_earned"`
}

// tally accumulates submission counts & score percentages.
type tally struct {
	submitted, graded, late int
	scoreSum, percentSum    float64
	coins, xp               int
}

func (tl *tally) add(sub Submission, maxScore int) {
	tl.submitted++
	if sub.Late {
		tl.late++
	}
	if sub.Status == StatusGraded && sub.Score != nil {
		tl.graded++
		tl.scoreSum += float64(*sub.Score)
		if maxScore > 0 {
			tl.percentSum += 100 * float64(*sub.Score) / float64(maxScore)
		}
		tl.coins += sub.CoinsAwarded
		tl.xp += sub.XPAwarded
	}
}

func (tl tally) avgScore() float64   { return ratio(tl.scoreSum, tl.graded) }
func (tl tally) avgPercent() float64 { return ratio(tl.percentSum, tl.graded) }

func ratio(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (svc *service) TaskStats(ctx context.Context, teacher user.User, taskID string) (TaskStats, error) {
	t, err := svc.ownedTask(ctx, teacher, taskID)
	if err != nil {
		return TaskStats{}, err
	}
	members, err := svc.groups.ListMembers(ctx, t.GroupID)
	if err != nil {
		return TaskStats{}, errors.Wrap(err, "listing members")
	}
	subs, err := svc.repo.ListTaskSubmissions(ctx, taskID)
	if err != nil {
		return TaskStats{}, errors.Wrap(err, "listing submissions")
	}

	isMember := make(map[string]bool, len(members))
	for _, m := range members {
		isMember[m.StudentID] = true
	}
	var tl tally
	for _, sub := range subs {
		if isMember[sub.StudentID] { // skip former members
			tl.add(sub, t.MaxScore)
		}
	}
	return TaskStats{
		TaskID:         taskID,
		Assigned:       len(members),
		Submitted:      tl.submitted,
		Graded:         tl.graded,
		Late:           tl.late,
		AverageScore:   tl.avgScore(),
		AveragePercent: tl.avgPercent(),
		CompletionRate: ratio(float64(tl.submitted), len(members)),
	}, nil
}

func (svc *service) GroupStats(ctx context.Context, teacher user.User, groupID string) (GroupStats, error) {
	if _, err := svc.teacherGroup(ctx, teacher, groupID); err != nil {
		return GroupStats{}, err
	}
	members, err := svc.groups.ListMembers(ctx, groupID)
	if err != nil {
		return GroupStats{}, errors.Wrap(err, "listing members")
	}
	tasks, err := svc.repo.ListTasks(ctx, QueryFilter{}, groupID)
	if err != nil {
		return GroupStats{}, errors.Wrap(err, "listing tasks")
	}

	stats := GroupStats{GroupID: groupID, Tasks: len(tasks), Students: make([]StudentStats, 0, len(members))}
	if len(tasks) == 0 {
		for _, m := range members {
			stats.Students = append(stats.Students, StudentStats{StudentID: m.StudentID, Name: m.Name, Username: m.Username})
		}
		return stats, nil
	}

	maxScores := make(map[string]int, len(tasks))
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		maxScores[t.ID] = t.MaxScore
		taskIDs = append(taskIDs, t.ID)
	}
	subs, err := svc.repo.ListTaskSubmissions(ctx, taskIDs...)
	if err != nil {
		return GroupStats{}, errors.Wrap(err, "listing submissions")
	}
	tallies := make(map[string]*tally, len(members))
	for _, m := range members {
		tallies[m.StudentID] = new(tally)
	}
	var submitted int
	for _, sub := range subs {
		if tl, ok := tallies[sub.StudentID]; ok { // skip former members
			tl.add(sub, maxScores[sub.TaskID])
			submitted++
		}
	}

	for _, m := range members {
		tl := tallies[m.StudentID]
		stats.Students = append(stats.Students, StudentStats{
			StudentID:      m.StudentID,
			Name:           m.Name,
			Username:       m.Username,
			Submitted:      tl.submitted,
			Graded:         tl.graded,
			Late:           tl.late,
			AveragePercent: tl.avgPercent(),
			CoinsEarned:    tl.coins,
			XPEarned:       tl.xp,
		})
	}
	stats.CompletionRate = ratio(float64(submitted), len(tasks)*len(members))
	return stats, nil
}

func (svc *service) StudentSummary(ctx context.Context, student user.User) (StudentSummary, error) {
	grps, err := svc.groups.ListStudentGroups(ctx, student.ID)
	if err != nil {
		return StudentSummary{}, errors.Wrap(err, "listing groups")
	}
	summary := StudentSummary{StudentID: student.ID, Groups: len(grps)}
	if len(grps) == 0 {
		return summary, nil
	}

	groupIDs := make([]string, 0, len(grps))
	for _, grp := range grps {
		groupIDs = append(groupIDs, grp.ID)
	}
	tasks, err := svc.repo.ListTasks(ctx, QueryFilter{}, groupIDs...)
	if err != nil {
		return StudentSummary{}, errors.Wrap(err, "listing tasks")
	}
	maxScores := make(map[string]int, len(tasks))
	for _, t := range tasks {
		maxScores[t.ID] = t.MaxScore
	}
	subs, err := svc.repo.ListStudentSubmissions(ctx, student.ID)
	if err != nil {
		return StudentSummary{}, errors.Wrap(err, "listing submissions")
	}

	var tl tally
	for _, sub := range subs {
		if maxScore, ok := maxScores[sub.TaskID]; ok {
			tl.add(sub, maxScore)
		}
	}
	summary.Assigned = len(tasks)
	summary.Submitted = tl.submitted
	summary.Pending = len(tasks) - tl.submitted
	summary.Graded = tl.graded
	summary.Late = tl.late
	summary.AveragePercent = tl.avgPercent()
	summary.CoinsEarned = tl.coins
	summary.XPEarned = tl.xp
	return summary, nil
}
