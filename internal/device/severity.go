package device

// Severity статус устройства и одновременно вход для агрегации.
// Порядок задаётся явным рангом, а не порядком объявления.
type Severity int

const (
	SeverityNone     Severity = 0
	SeverityRemoved  Severity = 1
	SeverityDone     Severity = 2
	SeverityInserted Severity = 3
	SeverityRunning  Severity = 4
	SeverityError    Severity = 5
)

// AllSeverities lists every severity in ascending rank.
var AllSeverities = []Severity{
	SeverityNone,
	SeverityRemoved,
	SeverityDone,
	SeverityInserted,
	SeverityRunning,
	SeverityError,
}

var severityRanks = map[Severity]int{
	SeverityNone:     0,
	SeverityRemoved:  1,
	SeverityDone:     2,
	SeverityInserted: 3,
	SeverityRunning:  4,
	SeverityError:    5,
}

// Rank возвращает фиксированный ранг. Неизвестные значения ниже NONE.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// Less reports whether s ranks strictly below other.
func (s Severity) Less(other Severity) bool {
	return s.Rank() < other.Rank()
}

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityRemoved:
		return "REMOVED"
	case SeverityDone:
		return "DONE"
	case SeverityInserted:
		return "INSERTED"
	case SeverityRunning:
		return "RUNNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxSeverity возвращает худший статус из набора; для пустого набора NONE.
func MaxSeverity(statuses ...Severity) Severity {
	max := SeverityNone
	for _, s := range statuses {
		if max.Less(s) {
			max = s
		}
	}
	return max
}
