package inmemdb

import (
	"context"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/student"
)

type studentRepository struct {
	students *studentTable
	parents  *parentTable
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{students: db.student, parents: db.parent}
}

func (repo *studentRepository) CreateParent(_ context.Context, p student.Parent, _ ...core.DBExecutor) (student.Parent, error) {
	repo.parents.Lock()
	defer repo.parents.Unlock()

	p.ID = newID()
	repo.parents.table[p.ID] = &p
	return p, nil
}

// CreateStudent enforces the uniqueness of RFID tags.
func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.students.Lock()
	defer repo.students.Unlock()

	if s.RFIDTagID != nil {
		for _, other := range repo.students.table {
			if other.RFIDTagID != nil && *other.RFIDTagID == *s.RFIDTagID {
				return student.Student{}, core.NewConflictError("A student with this RFID tag already exists")
			}
		}
	}
	s.ID = newID()
	s.RFIDTagID = copyString(s.RFIDTagID)
	repo.students.table[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	if s, ok := repo.students.table[id]; ok {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetActiveStudentByRFIDTag(_ context.Context, tag string, _ ...core.DBExecutor) (student.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	for _, s := range repo.students.table {
		if s.IsActive && s.RFIDTagID != nil && *s.RFIDTagID == tag {
			return *s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetContact(ctx context.Context, studentID string, exec ...core.DBExecutor) (student.Contact, error) {
	s, err := repo.GetStudent(ctx, studentID, exec...)
	if err != nil {
		return student.Contact{}, err
	}

	repo.parents.RLock()
	defer repo.parents.RUnlock()

	p, ok := repo.parents.table[s.ParentID]
	if !ok {
		return student.Contact{}, student.ErrParentNotFound
	}
	return student.Contact{Student: s, Parent: *p}, nil
}
