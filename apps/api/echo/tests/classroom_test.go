package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/task"
	"github.com/edufarm/edufarm/core/user"
	"github.com/edufarm/edufarm/tests"
)

func Test_groupApi(t *testing.T) {
	app := setup(t)
	repo := app.env.UserRepo
	teacher := testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, repo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, repo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacherToken, otherToken, studentToken := app.getToken(t, teacher), app.getToken(t, other), app.getToken(t, student)

	// create
	rec := app.do(http.MethodPost, "/v1/groups", studentToken, []byte(`{"name":"5A","subject":"Math"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

	rec = app.do(http.MethodPost, "/v1/groups", teacherToken, []byte(`{"name":" ","subject":"Math"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required"})}, rec)

	rec = app.do(http.MethodPost, "/v1/groups", teacherToken, []byte(`{"name":"5A","subject":"Math"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grp group.Group
	unmarshal(t, rec, &grp)
	assert.Equal(t, "math", grp.Subject)
	assert.Len(t, grp.JoinCode, 8)

	groupPath := "/v1/groups/" + grp.ID

	tests := []httpTest{
		{name: "bad code", method: http.MethodPost, path: "/v1/groups/join", token: studentToken, body: []byte(`{"code":"00000000"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"code": group.ErrInvalidCode.Error()})},
		{name: "teacher cannot join", method: http.MethodPost, path: "/v1/groups/join", token: teacherToken, body: marchallObj(t, group.JoinGroup{Code: grp.JoinCode}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "non member cannot see", method: http.MethodGet, path: groupPath, token: studentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: group.ErrNotFound.Error()})},
		{name: "join, lower case", method: http.MethodPost, path: "/v1/groups/join", token: studentToken, body: marchallObj(t, group.JoinGroup{Code: " " + strings.ToLower(grp.JoinCode) + " "}), wantCode: http.StatusOK},
		{name: "join twice", method: http.MethodPost, path: "/v1/groups/join", token: studentToken, body: marchallObj(t, group.JoinGroup{Code: grp.JoinCode}), wantCode: http.StatusOK},
		{name: "member sees it without code", method: http.MethodGet, path: groupPath, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, group.Group{ID: grp.ID, Name: grp.Name, Subject: grp.Subject, TeacherID: teacher.ID, CreatedAt: grp.CreatedAt})},
		{name: "student lists memberships", method: http.MethodGet, path: "/v1/groups", token: studentToken, wantCode: http.StatusOK},
		{name: "other teacher cannot update", method: http.MethodPut, path: groupPath, token: otherToken, body: []byte(`{"name":"X"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: group.ErrForbidden.Error()})},
		{name: "update", method: http.MethodPut, path: groupPath, token: teacherToken, body: []byte(`{"name":"5B"}`), wantCode: http.StatusOK},
		{name: "members", method: http.MethodGet, path: groupPath + "/members", token: teacherToken, wantCode: http.StatusOK},
		{name: "stats", method: http.MethodGet, path: groupPath + "/stats", token: teacherToken, wantCode: http.StatusOK},
		{name: "new code", method: http.MethodPost, path: groupPath + "/code", token: teacherToken, wantCode: http.StatusOK},
		{name: "remove unknown member", method: http.MethodDelete, path: groupPath + "/members/" + other.ID, token: teacherToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: group.ErrMemberNotFound.Error()})},
		{name: "remove member", method: http.MethodDelete, path: groupPath + "/members/" + student.ID, token: teacherToken, wantCode: http.StatusNoContent},
		{name: "delete", method: http.MethodDelete, path: groupPath, token: teacherToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: groupPath, token: teacherToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: group.ErrNotFound.Error()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)

			switch tt.name {
			case "student lists memberships":
				var groups []group.Group
				unmarshal(t, rec, &groups)
				require.Len(t, groups, 1)
				assert.Empty(t, groups[0].JoinCode)
			case "update":
				var updated group.Group
				unmarshal(t, rec, &updated)
				assert.Equal(t, "5B", updated.Name)
				assert.Equal(t, "math", updated.Subject)
			case "members":
				var members []group.Member
				unmarshal(t, rec, &members)
				require.Len(t, members, 1)
				assert.Equal(t, student.ID, members[0].StudentID)
				assert.Equal(t, "hero", members[0].Username)
			case "new code":
				var updated group.Group
				unmarshal(t, rec, &updated)
				assert.NotEqual(t, grp.JoinCode, updated.JoinCode)
			}
		})
	}
}

func Test_taskApi_gradingFlow(t *testing.T) {
	app := setup(t)
	env := app.env
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, env.UserRepo, "Out", "out", "", "", []string{user.RoleStudent}, true)
	teacherToken, studentToken := app.getToken(t, teacher), app.getToken(t, student)

	grp := testutil.CreateGroup(t, env.GroupSvc, teacher, "5A", "math")
	testutil.JoinGroup(t, env.GroupSvc, grp, student)

	due := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	newTask := task.NewTask{GroupID: grp.ID, Title: "Fractions", MaxScore: 10, RewardCoins: 20, RewardXP: 30, LatePenaltyPercent: 50, DueAt: &due}

	// create
	rec := app.do(http.MethodPost, "/v1/tasks", app.getToken(t, other), marchallObj(t, newTask))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: task.ErrForbidden.Error()})}, rec)

	rec = app.do(http.MethodPost, "/v1/tasks", teacherToken, []byte(`{"group_id":"`+grp.ID+`","title":"x","max_score":0}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest}, rec)

	rec = app.do(http.MethodPost, "/v1/tasks", teacherToken, marchallObj(t, newTask))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tsk task.Task
	unmarshal(t, rec, &tsk)
	assert.Equal(t, "math", tsk.Subject)

	taskPath := "/v1/tasks/" + tsk.ID

	// student view
	rec = app.do(http.MethodGet, "/v1/tasks", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []task.StudentTask
	unmarshal(t, rec, &tasks)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].Submission)

	rec = app.do(http.MethodGet, taskPath, app.getToken(t, outsider))
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: task.ErrNotFound.Error()})}, rec)

	// submit
	rec = app.do(http.MethodPost, taskPath+"/submissions", studentToken, []byte(`{"content":"  "}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{
		"content":        task.ErrEmptySubmission.Error(),
		"attachment_key": task.ErrEmptySubmission.Error(),
	})}, rec)

	rec = app.do(http.MethodPost, taskPath+"/submissions", studentToken, []byte(`{"attachment_key":"../../etc/passwd"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest}, rec)

	rec = app.do(http.MethodPost, taskPath+"/submissions", teacherToken, []byte(`{"content":"1/2"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

	rec = app.do(http.MethodPost, taskPath+"/submissions", studentToken, []byte(`{"content":"1/2"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub task.Submission
	unmarshal(t, rec, &sub)
	assert.Equal(t, task.StatusSubmitted, sub.Status)
	assert.False(t, sub.Late)

	subPath := "/v1/submissions/" + sub.ID

	// return then resubmit
	rec = app.do(http.MethodPost, subPath+"/return", teacherToken, []byte(`{"feedback":"show your work"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = app.do(http.MethodPost, taskPath+"/submissions", studentToken, []byte(`{"content":"1/2 because 2/4"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(http.MethodGet, taskPath+"/submissions", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []task.Submission
	unmarshal(t, rec, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)
	assert.Equal(t, "1/2 because 2/4", subs[0].Content)

	// grade
	rec = app.do(http.MethodPost, subPath+"/grade", teacherToken, []byte(`{"score":11}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: task.ErrScoreTooHigh.Error()})}, rec)

	rec = app.do(http.MethodPost, subPath+"/grade", teacherToken, []byte(`{"score":8,"feedback":"good"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &sub)
	assert.Equal(t, task.StatusGraded, sub.Status)
	assert.Equal(t, 16, sub.CoinsAwarded)
	assert.Equal(t, 24, sub.XPAwarded)

	rec = app.do(http.MethodPost, subPath+"/grade", teacherToken, []byte(`{"score":10}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: task.ErrAlreadyGraded.Error()})}, rec)

	rec = app.do(http.MethodPost, taskPath+"/submissions", studentToken, []byte(`{"content":"again"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: task.ErrAlreadyGraded.Error()})}, rec)

	// the reward landed on the farm
	rec = app.do(http.MethodGet, "/v1/farm", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view farm.FarmView
	unmarshal(t, rec, &view)
	assert.Equal(t, env.Conf.Game.StartingCoins+16, view.Coins)
	assert.Equal(t, 24, view.XP)

	// the student was told
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "submission_graded", sent[0].TemplateName)
	assert.Equal(t, "hero@test.cd", sent[0].To[0].Address)

	// comments
	rec = app.do(http.MethodPost, subPath+"/comments", studentToken, []byte(`{"body":"thanks!"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(http.MethodPost, subPath+"/comments", teacherToken, []byte(`{"body":"well done"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(http.MethodGet, subPath+"/comments", app.getToken(t, outsider))
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: task.ErrSubmissionNotFound.Error()})}, rec)
	rec = app.do(http.MethodGet, subPath+"/comments", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []task.Comment
	unmarshal(t, rec, &comments)
	assert.Len(t, comments, 2)

	// analytics
	rec = app.do(http.MethodGet, taskPath+"/stats", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats task.TaskStats
	unmarshal(t, rec, &stats)
	assert.Equal(t, 1, stats.Assigned)
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 1, stats.Graded)
	assert.Equal(t, 8.0, stats.AverageScore)

	rec = app.do(http.MethodGet, "/v1/me/summary", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary task.StudentSummary
	unmarshal(t, rec, &summary)
	assert.Equal(t, 1, summary.Graded)
	assert.Equal(t, 16, summary.CoinsEarned)

	rec = app.do(http.MethodGet, "/v1/me/summary", teacherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// update & delete
	rec = app.do(http.MethodPut, taskPath, teacherToken, []byte(`{"title":"Fractions II"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &tsk)
	assert.Equal(t, "Fractions II", tsk.Title)
	assert.Equal(t, 10, tsk.MaxScore)

	rec = app.do(http.MethodDelete, taskPath, teacherToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(http.MethodGet, taskPath, teacherToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
