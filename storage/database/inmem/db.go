package inmemdb

import (
	"sync"

	"github.com/trezcool/examroutine/core/exam"
)

type (
	DB struct {
		exam *examTable
	}

	examTable struct {
		mutex sync.RWMutex
		table map[string]*exam.Exam
	}
)

func Open() *DB {
	return &DB{
		exam: &examTable{table: make(map[string]*exam.Exam)},
	}
}

// Reset drops every stored record.
func (db *DB) Reset() {
	db.exam.mutex.Lock()
	defer db.exam.mutex.Unlock()
	db.exam.table = make(map[string]*exam.Exam)
}
