package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"shreddy/internal/config"
	"shreddy/internal/device"
	"shreddy/internal/logging"
	"shreddy/internal/wipe"
)

// SessionReport представляет отчёт об обработке одного носителя
type SessionReport struct {
	RunID      string             `json:"run_id"`
	DeviceID   string             `json:"device_id"`
	Hostname   string             `json:"hostname"`
	Path       string             `json:"path"`
	Model      string             `json:"model"`
	Status     string             `json:"status"`
	Message    string             `json:"message,omitempty"`
	StartTime  time.Time          `json:"start_time"`
	FinishTime time.Time          `json:"finish_time"`
	Duration   string             `json:"duration"`
	Stages     []wipe.StageResult `json:"stages"`
}

// GenerateReport собирает отчёт из снимка записи и результатов шагов
func GenerateReport(snap device.Snapshot, stages []wipe.StageResult, finished time.Time) *SessionReport {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &SessionReport{
		RunID:      uuid.NewString(),
		DeviceID:   snap.ID,
		Hostname:   hostname,
		Path:       snap.Path,
		Model:      snap.Model,
		Status:     snap.Status.String(),
		Message:    snap.Message,
		StartTime:  snap.StartedAt,
		FinishTime: finished,
		Duration:   finished.Sub(snap.StartedAt).Round(time.Millisecond).String(),
		Stages:     append([]wipe.StageResult(nil), stages...),
	}
}

// Writer сохраняет отчёты в каталог reporting.local_path.
type Writer struct {
	enabled bool
	dir     string
	logger  *logging.Logger
	now     func() time.Time
}

// NewWriter creates a report writer. A disabled writer drops reports.
func NewWriter(cfg *config.Config, logger *logging.Logger) *Writer {
	return &Writer{
		enabled: cfg.Reporting.Enabled,
		dir:     cfg.Reporting.LocalPath,
		logger:  logger,
		now:     time.Now,
	}
}

// Report implements wipe.Reporter. Failures are logged only.
func (w *Writer) Report(snap device.Snapshot, stages []wipe.StageResult) {
	if !w.enabled {
		return
	}

	report := GenerateReport(snap, stages, w.now())
	if err := w.Save(report); err != nil {
		w.logger.Log("ERROR", "Failed to save report", "path", snap.Path, "error", err)
		return
	}
	w.logger.Log("INFO", "Report saved", "path", snap.Path, "run_id", report.RunID, "dir", w.dir)
}

// Save writes report as JSON and as text.
func (w *Writer) Save(report *SessionReport) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("ошибка создания директории для отчётов: %w", err)
	}

	base := filepath.Join(w.dir, fileBase(report))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации отчёта: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0644); err != nil {
		return fmt.Errorf("ошибка записи отчёта: %w", err)
	}

	if err := os.WriteFile(base+".txt", []byte(FormatText(report)), 0644); err != nil {
		return fmt.Errorf("ошибка записи отчёта: %w", err)
	}
	return nil
}

func fileBase(report *SessionReport) string {
	name := strings.TrimPrefix(report.Path, "/dev/")
	name = strings.ReplaceAll(name, "/", "_")
	short := report.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("shreddy_report_%s_%s_%s", report.FinishTime.Format("20060102_150405"), name, short)
}

// FormatText renders a human-readable report.
func FormatText(report *SessionReport) string {
	var content strings.Builder

	content.WriteString("Shreddy - erase report\n")
	content.WriteString(fmt.Sprintf("Run ID: %s\n", report.RunID))
	content.WriteString(fmt.Sprintf("Host: %s\n", report.Hostname))
	content.WriteString(fmt.Sprintf("Device: %s\n", report.Path))
	content.WriteString(fmt.Sprintf("Model: %s\n", report.Model))
	content.WriteString(fmt.Sprintf("Started: %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	content.WriteString(fmt.Sprintf("Finished: %s\n", report.FinishTime.Format("2006-01-02 15:04:05")))
	content.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration))
	if report.Message != "" {
		content.WriteString(fmt.Sprintf("Result: %s (%s)\n", report.Status, report.Message))
	} else {
		content.WriteString(fmt.Sprintf("Result: %s\n", report.Status))
	}
	content.WriteString(strings.Repeat("=", 80) + "\n\n")

	content.WriteString("STAGES\n")
	content.WriteString(strings.Repeat("-", 50) + "\n")
	for _, stage := range report.Stages {
		status := "ok"
		if stage.Error != "" {
			status = "FAILED: " + stage.Error
		}
		content.WriteString(fmt.Sprintf("%-24s %10.2fs  %s\n", stage.Stage, stage.Duration.Seconds(), status))
		if stage.Command != "" {
			content.WriteString(fmt.Sprintf("  $ %s %s\n", stage.Command, strings.Join(stage.Args, " ")))
		}
	}

	return content.String()
}
