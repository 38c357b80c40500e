package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/virtualtutor/core/avatar"
)

type avatarRepository struct {
	db *DB
}

var _ avatar.Repository = (*avatarRepository)(nil)

func NewAvatarRepository(db *DB) avatar.Repository {
	return &avatarRepository{db: db}
}

func (repo *avatarRepository) CreateAvatar(_ context.Context, a avatar.Avatar) (avatar.Avatar, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, av := range repo.db.avatars {
		if av.Name == a.Name {
			return avatar.Avatar{}, avatar.ErrNameExists
		}
	}
	a.ID = repo.db.nextPK("avatars")
	repo.db.avatars[a.ID] = &a
	return a, nil
}

func (repo *avatarRepository) GetAvatarByID(_ context.Context, id int) (avatar.Avatar, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.avatars[id]; ok {
		return *a, nil
	}
	return avatar.Avatar{}, avatar.ErrNotFound
}

func (repo *avatarRepository) GetAvatarByName(_ context.Context, name string) (avatar.Avatar, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.avatars {
		if a.Name == name {
			return *a, nil
		}
	}
	return avatar.Avatar{}, avatar.ErrNotFound
}

func (repo *avatarRepository) GetAvatarByTutor(_ context.Context, tutorID int) (avatar.Avatar, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var found *avatar.Avatar
	for _, a := range repo.db.avatars {
		if a.TutorID == tutorID && (found == nil || a.ID < found.ID) {
			found = a
		}
	}
	if found == nil {
		return avatar.Avatar{}, avatar.ErrNotFound
	}
	return *found, nil
}

func (repo *avatarRepository) QueryAvatarsByTutors(_ context.Context, tutorIDs ...int) ([]avatar.Avatar, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make(map[int]bool, len(tutorIDs))
	for _, id := range tutorIDs {
		ids[id] = true
	}
	avatars := make([]avatar.Avatar, 0)
	for _, a := range repo.db.avatars {
		if ids[a.TutorID] {
			avatars = append(avatars, *a)
		}
	}
	sort.Slice(avatars, func(i, j int) bool {
		if avatars[i].CreatedAt.Equal(avatars[j].CreatedAt) {
			return avatars[i].ID > avatars[j].ID
		}
		return avatars[i].CreatedAt.After(avatars[j].CreatedAt)
	})
	return avatars, nil
}

func (repo *avatarRepository) UpdateAvatarStatus(_ context.Context, id int, status string) (avatar.Avatar, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.avatars[id]
	if !ok {
		return avatar.Avatar{}, avatar.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return *a, nil
}

func (repo *avatarRepository) DeleteAvatar(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.avatars[id]; !ok {
		return avatar.ErrNotFound
	}
	delete(repo.db.avatars, id)
	return nil
}
