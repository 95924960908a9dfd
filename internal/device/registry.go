package device

import (
	"sync"
	"sync/atomic"
)

// Registry журнал записей в порядке добавления. Записи не удаляются.
// Список публикуется как неизменяемый срез: читатели не берут блокировок.
type Registry struct {
	mu      sync.Mutex
	records atomic.Pointer[[]*Record]
}

// NewRegistry создаёт пустой журнал.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make([]*Record, 0)
	r.records.Store(&empty)
	return r
}

// Append добавляет запись в конец журнала.
func (r *Registry) Append(rec *Record) {
	if rec == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.records.Load()
	next := make([]*Record, len(current), len(current)+1)
	copy(next, current)
	next = append(next, rec)
	r.records.Store(&next)
}

// Len returns the number of records ever appended.
func (r *Registry) Len() int {
	return len(*r.records.Load())
}

// All возвращает снимки всех записей, новые первыми.
func (r *Registry) All() []Snapshot {
	return r.Recent(0)
}

// Recent returns at most n snapshots, newest first. n <= 0 means all.
func (r *Registry) Recent(n int) []Snapshot {
	records := *r.records.Load()
	if n <= 0 || n > len(records) {
		n = len(records)
	}

	out := make([]Snapshot, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i].Snapshot())
	}
	return out
}

// FindLive ищет самую свежую запись с данным путём, ещё не помеченную как REMOVED.
func (r *Registry) FindLive(path string) *Record {
	records := *r.records.Load()
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Path != path {
			continue
		}
		if rec.Status() == SeverityRemoved {
			continue
		}
		return rec
	}
	return nil
}
