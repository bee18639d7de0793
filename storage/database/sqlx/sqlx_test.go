package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/pet"
	"github.com/edufarm/edufarm/core/task"
	"github.com/edufarm/edufarm/core/user"
)

const (
	uid1 = "6f1d6a3c-5b9e-4a53-8a3c-2f9d5b0e8d11"
	uid2 = "0b2c7e41-9d6f-4c1e-b2a8-7d5e3f9c1a22"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestOrderBy(t *testing.T) {
	ords := []core.DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}
	assert.Equal(t, `"name" ASC, "created_at" DESC, id`, orderBy(ords, "id"))
	assert.Equal(t, "id", orderBy(nil, "id"))
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	usr := user.User{Name: "Ann", Username: "ann", Roles: []string{user.RoleStudent}, PasswordHash: []byte("h"), CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(`INSERT INTO "user"`).WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	assert.True(t, validID(created.ID))

	mock.ExpectExec(`INSERT INTO "user"`).WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "user_email_key"})
	_, err = repo.CreateUser(context.Background(), usr)
	assert.Equal(t, user.ErrEmailExists, err)

	mock.ExpectExec(`INSERT INTO "user"`).WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "user_username_key"})
	_, err = repo.CreateUser(context.Background(), usr)
	assert.Equal(t, user.ErrUsernameExists, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	cols := []string{"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login"}
	mock.ExpectQuery(`SELECT .+ FROM "user" WHERE \(username = \$1 OR email = \$1\)`).
		WithArgs("ann").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uid1, "Ann", "ann", nil, true, "{student:}", []byte("h"), now, now, nil))

	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "ann"})
	require.NoError(t, err)
	assert.Equal(t, uid1, usr.ID)
	assert.Equal(t, "", usr.Email)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.LastLogin.IsZero())

	mock.ExpectQuery(`SELECT .+ FROM "user" WHERE id = \$1`).WithArgs(uid2).WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetUser(ctx, user.GetFilter{ID: uid2})
	assert.Equal(t, user.ErrNotFound, err)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.Equal(t, user.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	active := true
	filter := &user.QueryFilter{Search: "an", Roles: []string{user.RoleTeacher}, IsActive: &active}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "user" WHERE (name ILIKE $1 OR username ILIKE $2 OR email ILIKE $3) AND EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE r LIKE ANY($4)) AND is_active = $5 ORDER BY "name" ASC, created_at DESC`)).
		WithArgs("%an%", "%an%", "%an%", pq.StringArray{"teacher:%"}, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	users, err := repo.QueryUsers(context.Background(), filter, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO "group"`).WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "group_join_code_key"})
	_, err := repo.CreateGroup(ctx, group.Group{Name: "Maths", JoinCode: "ABCDEF12"})
	assert.Equal(t, group.ErrCodeExists, err)

	mock.ExpectExec(`INSERT INTO group_member .+ ON CONFLICT \(group_id, student_id\) DO NOTHING`).
		WithArgs(uid1, uid2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.AddMember(ctx, group.Member{GroupID: uid1, StudentID: uid2, JoinedAt: time.Now()}))

	mock.ExpectExec(`DELETE FROM group_member`).WithArgs(uid1, uid2).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, group.ErrMemberNotFound, repo.RemoveMember(ctx, uid1, uid2))

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(uid1, uid2).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.IsMember(ctx, uid1, uid2)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.GetGroup(ctx, "nope")
	assert.Equal(t, group.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_GradeSubmission(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	score, now := 8, time.Now()
	sub := task.Submission{ID: uid1, Status: task.StatusGraded, Score: &score, GradedAt: &now}

	mock.ExpectExec(`UPDATE submission SET .+ WHERE id = \$7 AND status <> 'graded'`).WillReturnResult(sqlmock.NewResult(0, 1))
	graded, err := repo.GradeSubmission(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 8, *graded.Score)

	mock.ExpectExec(`UPDATE submission SET .+ AND status <> 'graded'`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.GradeSubmission(context.Background(), sub)
	assert.Equal(t, task.ErrAlreadyGraded, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_SaveSubmissionKeepsGraded(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	sub := task.Submission{TaskID: uid1, StudentID: uid2, Content: "again", Status: task.StatusSubmitted, SubmittedAt: time.Now()}

	mock.ExpectQuery(`INSERT INTO submission .+ ON CONFLICT \(task_id, student_id\) DO UPDATE SET .+ WHERE submission.status <> 'graded' RETURNING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.SaveSubmission(context.Background(), sub)
	assert.Equal(t, task.ErrAlreadyGraded, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_UpdateSubmission(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	sub := task.Submission{ID: uid1, Status: task.StatusReturned, Feedback: "redo"}

	mock.ExpectExec(`UPDATE submission SET status = \$1, feedback = \$2 WHERE id = \$3 AND status <> 'graded'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	returned, err := repo.UpdateSubmission(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, task.StatusReturned, returned.Status)

	mock.ExpectExec(`UPDATE submission SET .+ AND status <> 'graded'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM submission WHERE id = \$1`).WithArgs(uid1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("graded"))
	_, err = repo.UpdateSubmission(context.Background(), sub)
	assert.Equal(t, task.ErrAlreadyGraded, err)

	mock.ExpectExec(`UPDATE submission SET .+ AND status <> 'graded'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM submission WHERE id = \$1`).WithArgs(uid1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	_, err = repo.UpdateSubmission(context.Background(), sub)
	assert.Equal(t, task.ErrSubmissionNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_ListTasks(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM task WHERE group_id = ANY($1::uuid[]) AND subject = $2 ORDER BY created_at DESC`)).
		WithArgs(pq.StringArray{uid1}, "maths").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tasks, err := repo.ListTasks(context.Background(), task.QueryFilter{Subject: "maths"}, uid1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFarmRepository_UpdateFarm(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFarmRepository(db)
	now := time.Now().UTC()

	expectLoad := func() {
		mock.ExpectQuery(`SELECT .+ FROM farm WHERE user_id = \$1 FOR UPDATE`).WithArgs(uid1).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "coins", "xp", "created_at", "updated_at"}).AddRow(uid1, 50, 0, now, now))
		mock.ExpectQuery(`FROM farm_zone`).WillReturnRows(sqlmock.NewRows([]string{"user_id", "zone_id", "unlocked_at"}).AddRow(uid1, "meadow", now))
		mock.ExpectQuery(`FROM farm_plot`).WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		mock.ExpectQuery(`FROM farm_animal`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`FROM farm_production`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`FROM farm_boost`).WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		mock.ExpectQuery(`FROM farm_inventory`).WillReturnRows(sqlmock.NewRows([]string{"user_id", "item_id", "quantity"}).AddRow(uid1, "wheat", 3))
	}

	t.Run("Saves", func(t *testing.T) {
		mock.ExpectBegin()
		expectLoad()
		mock.ExpectExec(`UPDATE farm SET`).WithArgs(uid1, 40, 0, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
		for _, table := range farmChildTables {
			mock.ExpectExec(`DELETE FROM ` + table).WithArgs(uid1).WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectExec(`INSERT INTO farm_zone`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO farm_inventory`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		f, err := repo.UpdateFarm(context.Background(), uid1, func(f *farm.Farm) error {
			assert.Equal(t, 3, f.Inventory["wheat"])
			f.Coins -= 10
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 40, f.Coins)
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		mock.ExpectBegin()
		expectLoad()
		mock.ExpectRollback()

		errBoom := errors.New("boom")
		_, err := repo.UpdateFarm(context.Background(), uid1, func(*farm.Farm) error { return errBoom })
		assert.Equal(t, errBoom, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM farm WHERE user_id = \$1 FOR UPDATE`).WithArgs(uid2).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		mock.ExpectRollback()

		_, err := repo.UpdateFarm(context.Background(), uid2, func(*farm.Farm) error { return nil })
		assert.Equal(t, farm.ErrNotFound, err)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPetRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPetRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO pet`).WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "pet_owner_id_species_id_key"})
	_, err := repo.CreatePet(ctx, pet.Pet{OwnerID: uid1, SpeciesID: "puppy", Name: "Rex"})
	assert.Equal(t, pet.ErrExists, err)

	mock.ExpectExec(`DELETE FROM pet`).WithArgs(uid1, uid2).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, pet.ErrNotFound, repo.DeletePet(ctx, uid1, uid2))

	_, err = repo.GetPet(ctx, uid1, "bad")
	assert.Equal(t, pet.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
