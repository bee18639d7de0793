package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufarm/edufarm/core/group"
)

const groupColumns = `id, name, subject, teacher_id, join_code, created_at`

type groupRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Subject   string    `db:"subject"`
	TeacherID string    `db:"teacher_id"`
	JoinCode  string    `db:"join_code"`
	CreatedAt time.Time `db:"created_at"`
}

func (r groupRow) group() group.Group {
	return group.Group{
		ID:        r.ID,
		Name:      r.Name,
		Subject:   r.Subject,
		TeacherID: r.TeacherID,
		JoinCode:  r.JoinCode,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type memberRow struct {
	GroupID   string      `db:"group_id"`
	StudentID string      `db:"student_id"`
	Name      string      `db:"name"`
	Username  null.String `db:"username"`
	Email     null.String `db:"email"`
	JoinedAt  time.Time   `db:"joined_at"`
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func trapCodeErr(err error, msg string) error {
	if _, ok := uniqueViolationOn(err); ok {
		return group.ErrCodeExists
	}
	return errors.Wrap(err, msg)
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	grp.ID = uuid.New().String()
	grp.CreatedAt = grp.CreatedAt.UTC()
	q := `INSERT INTO "group" (` + groupColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := repo.db.ExecContext(ctx, q, grp.ID, grp.Name, grp.Subject, grp.TeacherID, grp.JoinCode, grp.CreatedAt); err != nil {
		return group.Group{}, trapCodeErr(err, "inserting group")
	}
	return grp, nil
}

func (repo *groupRepository) getGroup(ctx context.Context, cond string, arg interface{}) (group.Group, error) {
	var r groupRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+groupColumns+` FROM "group" WHERE `+cond, arg); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "getting group")
	}
	return r.group(), nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if !validID(id) {
		return group.Group{}, group.ErrNotFound
	}
	return repo.getGroup(ctx, "id = $1", id)
}

func (repo *groupRepository) GetGroupByCode(ctx context.Context, code string) (group.Group, error) {
	return repo.getGroup(ctx, "join_code = $1", code)
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	q := `UPDATE "group" SET name = $2, subject = $3, join_code = $4 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, grp.ID, grp.Name, grp.Subject, grp.JoinCode)
	if err != nil {
		return group.Group{}, trapCodeErr(err, "updating group")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	return grp, nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	if !validID(id) {
		return group.ErrNotFound
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM "group" WHERE id = $1`, id)
	return errors.Wrap(err, "deleting group")
}

func (repo *groupRepository) listGroups(ctx context.Context, q string, arg string) ([]group.Group, error) {
	var rows []groupRow
	if validID(arg) {
		if err := repo.db.SelectContext(ctx, &rows, q, arg); err != nil {
			return nil, errors.Wrap(err, "listing groups")
		}
	}
	grps := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.group())
	}
	return grps, nil
}

func (repo *groupRepository) ListTeacherGroups(ctx context.Context, teacherID string) ([]group.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM "group" WHERE teacher_id = $1 ORDER BY created_at DESC`
	return repo.listGroups(ctx, q, teacherID)
}

func (repo *groupRepository) ListStudentGroups(ctx context.Context, studentID string) ([]group.Group, error) {
	q := `SELECT g.id, g.name, g.subject, g.teacher_id, g.join_code, g.created_at
		FROM "group" g JOIN group_member m ON m.group_id = g.id
		WHERE m.student_id = $1 ORDER BY m.joined_at DESC`
	return repo.listGroups(ctx, q, studentID)
}

func (repo *groupRepository) AddMember(ctx context.Context, m group.Member) error {
	q := `INSERT INTO group_member (group_id, student_id, joined_at) VALUES ($1, $2, $3)
		ON CONFLICT (group_id, student_id) DO NOTHING`
	_, err := repo.db.ExecContext(ctx, q, m.GroupID, m.StudentID, m.JoinedAt.UTC())
	return errors.Wrap(err, "inserting group member")
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, studentID string) error {
	if !validID(groupID) || !validID(studentID) {
		return group.ErrMemberNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM group_member WHERE group_id = $1 AND student_id = $2`, groupID, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting group member")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.ErrMemberNotFound
	}
	return nil
}

func (repo *groupRepository) ListMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	var rows []memberRow
	if validID(groupID) {
		q := `SELECT m.group_id, m.student_id, u.name, u.username, u.email, m.joined_at
			FROM group_member m JOIN "user" u ON u.id = m.student_id
			WHERE m.group_id = $1 ORDER BY u.name`
		if err := repo.db.SelectContext(ctx, &rows, q, groupID); err != nil {
			return nil, errors.Wrap(err, "listing group members")
		}
	}
	members := make([]group.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, group.Member{
			GroupID:   r.GroupID,
			StudentID: r.StudentID,
			Name:      r.Name,
			Username:  r.Username.String,
			Email:     r.Email.String,
			JoinedAt:  r.JoinedAt.UTC(),
		})
	}
	return members, nil
}

func (repo *groupRepository) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	if !validID(groupID) || !validID(studentID) {
		return false, nil
	}
	var ok bool
	q := `SELECT EXISTS (SELECT 1 FROM group_member WHERE group_id = $1 AND student_id = $2)`
	err := repo.db.GetContext(ctx, &ok, q, groupID, studentID)
	return ok, errors.Wrap(err, "checking group membership")
}
