package group

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("group not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrForbidden      = errors.New("you are not the teacher of this group")
	ErrCodeExists     = errors.New("join code already in use")
	ErrInvalidCode    = errors.New("invalid join code")

	maxCodeAttempts = 5
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		// GetGroup returns ErrNotFound if no Group has this ID.
		GetGroup(ctx context.Context, id string) (Group, error)
		GetGroupByCode(ctx context.Context, code string) (Group, error)
		// UpdateGroup saves Name, Subject & JoinCode; returns ErrCodeExists on a code clash.
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroup(ctx context.Context, id string) error
		ListTeacherGroups(ctx context.Context, teacherID string) ([]Group, error)
		ListStudentGroups(ctx context.Context, studentID string) ([]Group, error)
		// AddMember is a no-op if the student is already a member.
		AddMember(ctx context.Context, m Member) error
		RemoveMember(ctx context.Context, groupID, studentID string) error
		ListMembers(ctx context.Context, groupID string) ([]Member, error)
		IsMember(ctx context.Context, groupID, studentID string) (bool, error)
	}

	Service interface {
		Checker
		Create(ctx context.Context, teacher user.User, ng NewGroup) (Group, error)
		Get(ctx context.Context, actor user.User, id string) (Group, error)
		Update(ctx context.Context, teacher user.User, id string, ug UpdateGroup) (Group, error)
		Delete(ctx context.Context, teacher user.User, id string) error
		ListForUser(ctx context.Context, usr user.User) ([]Group, error)
		Join(ctx context.Context, student user.User, code string) (Group, error)
		ListMembers(ctx context.Context, actor user.User, id string) ([]Member, error)
		RemoveMember(ctx context.Context, teacher user.User, id, studentID string) error
		RegenerateCode(ctx context.Context, teacher user.User, id string) (Group, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, teacher user.User, ng NewGroup) (Group, error) {
	grp := Group{
		Name:      ng.Name,
		Subject:   ng.Subject,
		TeacherID: teacher.ID,
		CreatedAt: core.NowFunc(),
	}
	for i := 0; i < maxCodeAttempts; i++ {
		grp.JoinCode = newJoinCode()
		created, err := svc.repo.CreateGroup(ctx, grp)
		if errors.Cause(err) == ErrCodeExists {
			continue
		}
		return created, errors.Wrap(err, "creating group")
	}
	return Group{}, ErrCodeExists
}

// ownedGroup fetches the Group and checks that `teacher` owns it. Admins own everything.
func (svc *service) ownedGroup(ctx context.Context, teacher user.User, id string) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if grp.TeacherID != teacher.ID && !teacher.IsAdmin() {
		return Group{}, ErrForbidden
	}
	return grp, nil
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if grp.TeacherID == actor.ID || actor.IsAdmin() {
		return grp, nil
	}
	ok, err := svc.repo.IsMember(ctx, id, actor.ID)
	if err != nil {
		return Group{}, errors.Wrap(err, "checking membership")
	}
	if !ok {
		return Group{}, ErrNotFound
	}
	grp.JoinCode = "" // only the teacher shares it
	return grp, nil
}

func (svc *service) Update(ctx context.Context, teacher user.User, id string, ug UpdateGroup) (Group, error) {
	grp, err := svc.ownedGroup(ctx, teacher, id)
	if err != nil {
		return Group{}, err
	}
	ug.Validate(grp)
	grp.Name = ug.Name
	grp.Subject = ug.Subject
	grp, err = svc.repo.UpdateGroup(ctx, grp)
	return grp, errors.Wrap(err, "updating group")
}

func (svc *service) Delete(ctx context.Context, teacher user.User, id string) error {
	if _, err := svc.ownedGroup(ctx, teacher, id); err != nil {
		return err
	}
	return svc.repo.DeleteGroup(ctx, id)
}

func (svc *service) ListForUser(ctx context.Context, usr user.User) ([]Group, error) {
	if usr.IsTeacher() {
		return svc.repo.ListTeacherGroups(ctx, usr.ID)
	}
	grps, err := svc.repo.ListStudentGroups(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	for i := range grps {
		grps[i].JoinCode = ""
	}
	return grps, nil
}

func (svc *service) Join(ctx context.Context, student user.User, code string) (Group, error) {
	grp, err := svc.repo.GetGroupByCode(ctx, code)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Group{}, core.NewValidationError(ErrInvalidCode, core.FieldError{Field: "code", Error: ErrInvalidCode.Error()})
		}
		return Group{}, errors.Wrap(err, "finding group by code")
	}
	if err := svc.repo.AddMember(ctx, Member{GroupID: grp.ID, StudentID: student.ID, JoinedAt: core.NowFunc()}); err != nil {
		return Group{}, errors.Wrap(err, "adding member")
	}
	grp.JoinCode = ""
	return grp, nil
}

func (svc *service) ListMembers(ctx context.Context, actor user.User, id string) ([]Member, error) {
	if _, err := svc.ownedGroup(ctx, actor, id); err != nil {
		return nil, err
	}
	return svc.repo.ListMembers(ctx, id)
}

func (svc *service) RemoveMember(ctx context.Context, teacher user.User, id, studentID string) error {
	if _, err := svc.ownedGroup(ctx, teacher, id); err != nil {
		return err
	}
	return svc.repo.RemoveMember(ctx, id, studentID)
}

func (svc *service) RegenerateCode(ctx context.Context, teacher user.User, id string) (Group, error) {
	grp, err := svc.ownedGroup(ctx, teacher, id)
	if err != nil {
		return Group{}, err
	}
	for i := 0; i < maxCodeAttempts; i++ {
		grp.JoinCode = newJoinCode()
		updated, err := svc.repo.UpdateGroup(ctx, grp)
		if errors.Cause(err) == ErrCodeExists {
			continue
		}
		return updated, errors.Wrap(err, "regenerating join code")
	}
	return Group{}, ErrCodeExists
}

func (svc *service) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	return svc.repo.IsMember(ctx, groupID, studentID)
}

func (svc *service) IsTeacherOf(ctx context.Context, groupID, teacherID string) (bool, error) {
	grp, err := svc.repo.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return grp.TeacherID == teacherID, nil
}
