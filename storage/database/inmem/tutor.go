package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/virtualtutor/core/tutor"
)

type tutorRepository struct {
	db *DB
}

var _ tutor.Repository = (*tutorRepository)(nil)

func NewTutorRepository(db *DB) tutor.Repository {
	return &tutorRepository{db: db}
}

func (repo *tutorRepository) CreateTutor(_ context.Context, t tutor.Tutor) (tutor.Tutor, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = repo.db.nextPK("tutors")
	repo.db.tutors[t.ID] = &t
	return t, nil
}

func (repo *tutorRepository) GetTutorByID(_ context.Context, id int) (tutor.Tutor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tutors[id]; ok {
		return *t, nil
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) QueryTutorsByAdmin(_ context.Context, adminID int) ([]tutor.Tutor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tutors := make([]tutor.Tutor, 0)
	for _, t := range repo.db.tutors {
		if t.AdminID == adminID {
			tutors = append(tutors, *t)
		}
	}
	sort.Slice(tutors, func(i, j int) bool { return tutors[i].ID > tutors[j].ID })
	return tutors, nil
}

func (repo *tutorRepository) DeleteTutor(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tutors[id]; !ok {
		return tutor.ErrNotFound
	}
	repo.db.deleteTutor(id)
	return nil
}
