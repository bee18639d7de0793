package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/edufarm/edufarm/core/group"
)

type groupRepository struct {
	db    *groupTable
	users *userTable
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db.group, users: db.user}
}

func (repo *groupRepository) codeTaken(code, exceptID string) bool {
	for id, grp := range repo.db.table {
		if id != exceptID && grp.JoinCode == code {
			return true
		}
	}
	return false
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.codeTaken(grp.JoinCode, "") {
		return group.Group{}, group.ErrCodeExists
	}
	grp.ID = uuid.NewString()
	repo.db.table[grp.ID] = &grp
	return grp, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if grp, ok := repo.db.table[id]; ok {
		return *grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) GetGroupByCode(_ context.Context, code string) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, grp := range repo.db.table {
		if grp.JoinCode == code {
			return *grp, nil
		}
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) UpdateGroup(_ context.Context, grp group.Group) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	if repo.codeTaken(grp.JoinCode, grp.ID) {
		return group.Group{}, group.ErrCodeExists
	}
	orig.Name, orig.Subject, orig.JoinCode = grp.Name, grp.Subject, grp.JoinCode
	return *orig, nil
}

func (repo *groupRepository) DeleteGroup(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	delete(repo.db.members, id)
	return nil
}

func sortGroups(grps []group.Group) []group.Group {
	sort.Slice(grps, func(i, j int) bool { return grps[i].CreatedAt.After(grps[j].CreatedAt) })
	return grps
}

func (repo *groupRepository) ListTeacherGroups(_ context.Context, teacherID string) ([]group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grps := make([]group.Group, 0)
	for _, grp := range repo.db.table {
		if grp.TeacherID == teacherID {
			grps = append(grps, *grp)
		}
	}
	return sortGroups(grps), nil
}

func (repo *groupRepository) ListStudentGroups(_ context.Context, studentID string) ([]group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grps := make([]group.Group, 0)
	for id, members := range repo.db.members {
		if _, ok := members[studentID]; ok {
			if grp, ok := repo.db.table[id]; ok {
				grps = append(grps, *grp)
			}
		}
	}
	return sortGroups(grps), nil
}

func (repo *groupRepository) AddMember(_ context.Context, m group.Member) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[m.GroupID]; !ok {
		return group.ErrNotFound
	}
	members, ok := repo.db.members[m.GroupID]
	if !ok {
		members = make(map[string]group.Member)
		repo.db.members[m.GroupID] = members
	}
	if _, ok := members[m.StudentID]; !ok {
		members[m.StudentID] = m
	}
	return nil
}

func (repo *groupRepository) RemoveMember(_ context.Context, groupID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.members[groupID][studentID]; !ok {
		return group.ErrMemberNotFound
	}
	delete(repo.db.members[groupID], studentID)
	return nil
}

func (repo *groupRepository) ListMembers(_ context.Context, groupID string) ([]group.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.users.RLock()
	defer repo.users.RUnlock()

	members := make([]group.Member, 0, len(repo.db.members[groupID]))
	for _, m := range repo.db.members[groupID] {
		if usr, ok := repo.users.table[m.StudentID]; ok {
			m.Name, m.Username, m.Email = usr.Name, usr.Username, usr.Email
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (repo *groupRepository) IsMember(_ context.Context, groupID, studentID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	_, ok := repo.db.members[groupID][studentID]
	return ok, nil
}
