package inmemdb

import (
	"sync"

	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/session"
	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
)

// DB is an in-memory database. One lock guards every table so that cascading deletes stay consistent.
type DB struct {
	mutex sync.RWMutex

	pkCount  map[string]int
	admins   map[int]*admin.Admin
	tutors   map[int]*tutor.Tutor
	students map[int]*student.Student
	avatars  map[int]*avatar.Avatar
	sessions map[int]*session.Session
	messages map[int]*session.Message
}

func Open() *DB {
	return &DB{
		pkCount:  make(map[string]int),
		admins:   make(map[int]*admin.Admin),
		tutors:   make(map[int]*tutor.Tutor),
		students: make(map[int]*student.Student),
		avatars:  make(map[int]*avatar.Avatar),
		sessions: make(map[int]*session.Session),
		messages: make(map[int]*session.Message),
	}
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK(table string) int {
	db.pkCount[table]++
	return db.pkCount[table]
}

// deleteTutor deletes t and cascades to what it owns; the write lock must be held.
func (db *DB) deleteTutor(id int) {
	delete(db.tutors, id)
	for sid, stu := range db.students {
		if stu.TutorID == id {
			db.deleteStudent(sid)
		}
	}
	for aid, a := range db.avatars {
		if a.TutorID == id {
			delete(db.avatars, aid)
		}
	}
	for sid, s := range db.sessions {
		if s.TutorID == id {
			db.deleteSession(sid)
		}
	}
}

func (db *DB) deleteStudent(id int) {
	delete(db.students, id)
	for sid, s := range db.sessions {
		if s.StudentID == id {
			db.deleteSession(sid)
		}
	}
}

func (db *DB) deleteSession(id int) {
	delete(db.sessions, id)
	for mid, m := range db.messages {
		if m.SessionID == id {
			delete(db.messages, mid)
		}
	}
}
