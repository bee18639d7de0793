// Package inmemdb implements the domain repositories in memory.
// It backs the tests and the "memory" database engine.
package inmemdb

import (
	"sync"

	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/pet"
	"github.com/edufarm/edufarm/core/task"
	"github.com/edufarm/edufarm/core/user"
)

type (
	DB struct {
		user  *userTable
		group *groupTable
		task  *taskTable
		farm  *farmTable
		pet   *petTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	groupTable struct {
		sync.RWMutex
		table   map[string]*group.Group
		members map[string]map[string]group.Member // {groupID: {studentID: Member}}
	}

	taskTable struct {
		sync.RWMutex
		tasks       map[string]*task.Task
		submissions map[string]*task.Submission
		comments    []task.Comment
	}

	farmTable struct {
		sync.Mutex
		table map[string]*farm.Farm
	}

	petTable struct {
		sync.Mutex
		table map[string]*pet.Pet
	}
)

func Open() *DB {
	return &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		group: &groupTable{table: make(map[string]*group.Group), members: make(map[string]map[string]group.Member)},
		task:  &taskTable{tasks: make(map[string]*task.Task), submissions: make(map[string]*task.Submission)},
		farm:  &farmTable{table: make(map[string]*farm.Farm)},
		pet:   &petTable{table: make(map[string]*pet.Pet)},
	}
}
