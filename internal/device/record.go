package device

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record хранит сведения об обрабатываемом носителе.
type Record struct {
	ID        string
	Path      string
	Model     string
	StartedAt time.Time

	mu      sync.RWMutex
	status  Severity
	message string
}

// Snapshot is a read-consistent copy of a Record.
type Snapshot struct {
	ID        string
	Path      string
	Model     string
	Status    Severity
	Message   string
	StartedAt time.Time
}

// StatusNotifier получает уведомления о смене статуса устройства.
type StatusNotifier interface {
	SetStatus(path string, status Severity)
}

// Notifiers fans one status change out to several sinks.
type Notifiers []StatusNotifier

func (n Notifiers) SetStatus(path string, status Severity) {
	for _, sink := range n {
		if sink != nil {
			sink.SetStatus(path, status)
		}
	}
}

// NewRecord создаёт запись в статусе NONE. Непечатаемые символы модели отбрасываются.
func NewRecord(path, model string) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Path:      path,
		Model:     SanitizeModel(model),
		StartedAt: time.Now(),
		status:    SeverityNone,
	}
}

// SanitizeModel keeps only printable ASCII (letters, digits, punctuation, whitespace).
func SanitizeModel(model string) string {
	var b strings.Builder
	b.Grow(len(model))
	for i := 0; i < len(model); i++ {
		c := model[i]
		if isPrintable(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isPrintable(c byte) bool {
	if c >= 0x20 && c <= 0x7e {
		return true
	}
	switch c {
	case '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// SetStatus выставляет статус и сообщение.
func (r *Record) SetStatus(status Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.message = message
}

// SetError переводит запись в ERROR с текстом ошибки.
func (r *Record) SetError(message string) {
	r.SetStatus(SeverityError, message)
}

func (r *Record) Status() Severity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Record) Message() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.message
}

func (r *Record) HasError() bool {
	return r.Status() == SeverityError
}

// Elapsed returns the time since the record was created.
func (r *Record) Elapsed() time.Duration {
	return time.Since(r.StartedAt)
}

// Snapshot возвращает согласованную копию записи.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		ID:        r.ID,
		Path:      r.Path,
		Model:     r.Model,
		Status:    r.status,
		Message:   r.message,
		StartedAt: r.StartedAt,
	}
}

// StatusText renders the status column of the status table.
func (s Snapshot) StatusText() string {
	switch s.Status {
	case SeverityRemoved:
		return "Removed"
	case SeverityDone:
		return "Done"
	case SeverityInserted:
		return "Inserted"
	case SeverityRunning:
		return s.Message
	case SeverityError:
		return fmt.Sprintf("Error (%s)", s.Message)
	default:
		return "None"
	}
}
