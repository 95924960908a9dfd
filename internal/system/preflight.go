package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"shreddy/internal/config"
	"shreddy/internal/logging"
	"shreddy/internal/wipe"
)

// ErrToolUnavailable is returned when a required external tool cannot be run.
var ErrToolUnavailable = errors.New("required tool not available")

// CheckStatus результат проверки
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusFail CheckStatus = "FAIL"
)

// ToolCheck проверяет один инструмент: запуск безопасной команды или только поиск в PATH.
type ToolCheck struct {
	Name     string
	Args     []string
	LookOnly bool
}

// CheckResult содержит результат проверки инструмента
type CheckResult struct {
	Tool     string        `json:"tool"`
	Status   CheckStatus   `json:"status"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// DefaultChecks returns the startup checks for the configured tools.
// badblocks has no harmless invocation, so it is only looked up.
func DefaultChecks(cfg *config.Config) []ToolCheck {
	checks := []ToolCheck{
		{Name: cfg.Tools.Verify, Args: []string{"--version"}},
		{Name: "parted", Args: []string{"-v"}},
		{Name: cfg.Tools.Mkfs, Args: []string{"--help"}},
		{Name: cfg.Tools.Overwrite, LookOnly: true},
	}

	partition := cfg.Tools.Partition
	if len(partition) == 0 {
		partition = []string{wipe.DefaultPartitionScript}
	}
	for _, part := range partition {
		if part == "" || strings.HasPrefix(part, "-") {
			continue
		}
		checks = append(checks, ToolCheck{Name: part, LookOnly: true})
	}
	return checks
}

// Checker runs preflight checks.
type Checker struct {
	runner   wipe.CommandRunner
	lookPath func(string) (string, error)
	logger   *logging.Logger
}

// NewChecker uses the real PATH and process execution when runner is nil.
func NewChecker(runner wipe.CommandRunner, logger *logging.Logger) *Checker {
	if runner == nil {
		runner = wipe.ExecRunner{}
	}
	return &Checker{
		runner:   runner,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// Run выполняет все проверки и возвращает результаты по каждой.
func (c *Checker) Run(ctx context.Context, checks []ToolCheck) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, tc := range checks {
		results = append(results, c.check(ctx, tc))
	}
	return results
}

func (c *Checker) check(ctx context.Context, tc ToolCheck) CheckResult {
	start := time.Now()
	result := CheckResult{Tool: tc.Name}

	path, err := c.lookPath(tc.Name)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not found in PATH: %s", tc.Name)
		result.Duration = time.Since(start)
		return result
	}

	if tc.LookOnly {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("found at %s", path)
		result.Duration = time.Since(start)
		return result
	}

	out, err := c.runner.Run(ctx, tc.Name, tc.Args...)
	result.Duration = time.Since(start)
	if err != nil || out.ExitCode != 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("command %s %s failed with return code %d", tc.Name, strings.Join(tc.Args, " "), out.ExitCode)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s %s succeeded", tc.Name, strings.Join(tc.Args, " "))
	return result
}

// Preflight runs checks and fails on the first unavailable tool.
func (c *Checker) Preflight(ctx context.Context, checks []ToolCheck) error {
	for _, res := range c.Run(ctx, checks) {
		c.logger.Log("DEBUG", "Preflight check", "tool", res.Tool, "status", string(res.Status), "message", res.Message)
		if res.Status == StatusFail {
			c.logger.Log("ERROR", "Command not available", "tool", res.Tool, "message", res.Message)
			return fmt.Errorf("%w: %s: %s", ErrToolUnavailable, res.Tool, res.Message)
		}
	}
	return nil
}
