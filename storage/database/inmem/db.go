package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/finance"
	"github.com/trezcool/darasa/core/notes"
	"github.com/trezcool/darasa/core/timetable"
	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

// DB is an in-memory store backing the repositories for tests and local
// hacking. One mutex guards all tables so cross-table operations stay
// consistent.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	profiles    map[string]*user.StudentProfile // by student ID
	tuitions    map[string]*tuition.Tuition
	tuitionLogs map[string]*finance.TuitionLog
	paymentLogs map[string]*finance.PaymentLog
	runs        map[string]*timetable.Run
	notes       map[string]*notes.Note
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		profiles:    make(map[string]*user.StudentProfile),
		tuitions:    make(map[string]*tuition.Tuition),
		tuitionLogs: make(map[string]*finance.TuitionLog),
		paymentLogs: make(map[string]*finance.PaymentLog),
		runs:        make(map[string]*timetable.Run),
		notes:       make(map[string]*notes.Note),
	}
}
