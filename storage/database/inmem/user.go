package inmemdb

import (
	"context"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) findByEmail(email string) (user.User, bool) {
	for _, usr := range repo.db.data.users {
		if usr.Email == email {
			return usr, true
		}
	}
	return user.User{}, false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if _, found := repo.findByEmail(email); found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lock(exec)()

	if _, found := repo.findByEmail(usr.Email); found {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = repo.db.newID()
	repo.db.data.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID == "" && filter.Email == "" {
		return user.User{}, user.ErrNotFound
	}
	if filter.ID != "" {
		usr, ok := repo.db.data.users[filter.ID]
		if !ok || (filter.Email != "" && usr.Email != filter.Email) {
			return user.User{}, user.ErrNotFound
		}
		return usr, nil
	}
	if usr, found := repo.findByEmail(filter.Email); found {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if other, found := repo.findByEmail(usr.Email); found && other.ID != usr.ID {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.data.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) SaveParentProfile(_ context.Context, prof user.ParentProfile, exec ...core.DBExecutor) (user.ParentProfile, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.users[prof.UserID]; !ok {
		return user.ParentProfile{}, user.ErrNotFound
	}
	repo.db.data.parentProfiles[prof.UserID] = prof
	return prof, nil
}

func (repo *userRepository) GetParentProfile(_ context.Context, userID string, _ ...core.DBExecutor) (user.ParentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if prof, ok := repo.db.data.parentProfiles[userID]; ok {
		return prof, nil
	}
	return user.ParentProfile{}, user.ErrNotFound
}

func (repo *userRepository) SaveAdminProfile(_ context.Context, prof user.AdminProfile, exec ...core.DBExecutor) (user.AdminProfile, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.users[prof.UserID]; !ok {
		return user.AdminProfile{}, user.ErrNotFound
	}
	repo.db.data.adminProfiles[prof.UserID] = prof
	return prof, nil
}
