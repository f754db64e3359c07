// Package inmemdb is a process-local store implementing the core repositories.
// It backs DEV runs with DB_ENGINE=memory and the service and API test suites.
package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
)

type (
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex // one transaction at a time
		data tables
	}

	tables struct {
		seq            uint64
		order          map[string]uint64 // id -> insertion sequence
		users          map[string]user.User
		parentProfiles map[string]user.ParentProfile // by user_id
		adminProfiles  map[string]user.AdminProfile  // by user_id
		applications   map[string]admission.Application
		students       map[string]admission.Student
		enrollments    map[string]admission.Enrollment // by student_id
		fees           map[string]fee.FeeStructure
		payments       map[string]fee.Payment
		reminders      map[string]time.Time // by fee_structure_id
		notifications  map[string]notification.Notification
	}
)

var _ core.Transactor = (*DB)(nil)

// txExec is handed to fn by Transact so repositories can tell writes made inside a transaction.
// Its methods are never called.
type txExec struct {
	sqlx.ExtContext
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) == 0 {
		return false
	}
	_, ok := exec[0].(txExec)
	return ok
}

// lock takes mu for writing and returns its release. A write made outside a transaction
// first waits for the running one, so that a rollback cannot discard it.
func (db *DB) lock(exec []core.DBExecutor) (unlock func()) {
	if inTx(exec) {
		db.mu.Lock()
		return db.mu.Unlock
	}
	db.txMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.txMu.Unlock()
	}
}

func Open() *DB {
	return &DB{data: newTables()}
}

func newTables() tables {
	return tables{
		order:          make(map[string]uint64),
		users:          make(map[string]user.User),
		parentProfiles: make(map[string]user.ParentProfile),
		adminProfiles:  make(map[string]user.AdminProfile),
		applications:   make(map[string]admission.Application),
		students:       make(map[string]admission.Student),
		enrollments:    make(map[string]admission.Enrollment),
		fees:           make(map[string]fee.FeeStructure),
		payments:       make(map[string]fee.Payment),
		reminders:      make(map[string]time.Time),
		notifications:  make(map[string]notification.Notification),
	}
}

// Reset drops every record.
func (db *DB) Reset() {
	db.mu.Lock()
	db.data = newTables()
	db.mu.Unlock()
}

// Transact serializes units of work and restores the previous state if fn fails or panics.
// Repositories must be given the executor passed to fn; a write without it blocks until fn returns.
func (db *DB) Transact(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.data.clone()
	db.mu.RUnlock()

	rollback := func() {
		db.mu.Lock()
		db.data = snapshot
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(txExec{}); err != nil {
		rollback()
	}
	return err
}

func (t tables) clone() tables {
	c := newTables()
	c.seq = t.seq
	for k, v := range t.order {
		c.order[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.parentProfiles {
		c.parentProfiles[k] = v
	}
	for k, v := range t.adminProfiles {
		c.adminProfiles[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.fees {
		c.fees[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.reminders {
		c.reminders[k] = v
	}
	for k, v := range t.notifications {
		c.notifications[k] = v
	}
	return c
}

// newID must be called with mu held for writing.
func (db *DB) newID() string {
	id := uuid.New().String()
	db.data.seq++
	db.data.order[id] = db.data.seq
	return id
}

// before orders records by time, then by insertion.
func (db *DB) before(ti, tj time.Time, idi, idj string) bool {
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return db.data.order[idi] < db.data.order[idj]
}

func (db *DB) sortIDs(ids []string, timeOf func(id string) time.Time, desc bool) {
	sort.SliceStable(ids, func(i, j int) bool {
		if desc {
			return db.before(timeOf(ids[j]), timeOf(ids[i]), ids[j], ids[i])
		}
		return db.before(timeOf(ids[i]), timeOf(ids[j]), ids[i], ids[j])
	})
}
