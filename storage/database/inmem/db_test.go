package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/user"
	inmemdb "github.com/trezcool/aqram/storage/database/inmem"
)

var errBoom = errors.New("boom")

func TestDB_Transact(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		fn        func(repo user.Repository) func(exec core.DBExecutor) error
		wantErr   error
		wantPanic bool
		wantFound bool
	}{
		{
			name: "commit",
			fn: func(repo user.Repository) func(exec core.DBExecutor) error {
				return func(exec core.DBExecutor) error {
					_, err := repo.CreateUser(ctx, user.User{Name: "Jane", Email: "jane@test.cd"}, exec)
					return err
				}
			},
			wantFound: true,
		},
		{
			name: "rollback on error",
			fn: func(repo user.Repository) func(exec core.DBExecutor) error {
				return func(exec core.DBExecutor) error {
					if _, err := repo.CreateUser(ctx, user.User{Name: "Jane", Email: "jane@test.cd"}, exec); err != nil {
						return err
					}
					return errBoom
				}
			},
			wantErr: errBoom,
		},
		{
			name: "rollback on panic",
			fn: func(repo user.Repository) func(exec core.DBExecutor) error {
				return func(exec core.DBExecutor) error {
					if _, err := repo.CreateUser(ctx, user.User{Name: "Jane", Email: "jane@test.cd"}, exec); err != nil {
						return err
					}
					panic(errBoom)
				}
			},
			wantPanic: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := inmemdb.Open()
			repo := inmemdb.NewUserRepository(db)

			if tt.wantPanic {
				assert.Panics(t, func() { _ = db.Transact(ctx, tt.fn(repo)) })
			} else {
				assert.Equal(t, tt.wantErr, db.Transact(ctx, tt.fn(repo)))
			}

			_, err := repo.GetUser(ctx, user.GetFilter{Email: "jane@test.cd"})
			assert.Equal(t, tt.wantFound, err == nil)
		})
	}
}

func TestDB_Transact_rollbackKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	repo := inmemdb.NewUserRepository(db)

	usr, err := repo.CreateUser(ctx, user.User{Name: "Jane", Email: "jane@test.cd", IsActive: true})
	require.NoError(t, err)

	inside := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- db.Transact(ctx, func(exec core.DBExecutor) error {
			if _, err := repo.CreateUser(ctx, user.User{Name: "John", Email: "john@test.cd"}, exec); err != nil {
				return err
			}
			close(inside)
			<-release
			return errBoom
		})
	}()
	<-inside

	written := make(chan error, 1)
	go func() {
		renamed := usr
		renamed.Name = "Jane Doe"
		_, err := repo.UpdateUser(ctx, renamed)
		written <- err
	}()
	time.Sleep(20 * time.Millisecond) // let the update queue up behind the transaction
	close(release)

	assert.Equal(t, errBoom, <-txDone)
	require.NoError(t, <-written)

	got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)

	_, err = repo.GetUser(ctx, user.GetFilter{Email: "john@test.cd"})
	assert.Equal(t, user.ErrNotFound, err)
}
