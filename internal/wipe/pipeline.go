package wipe

import (
	"context"
	"fmt"
	"time"

	"shreddy/internal/config"
	"shreddy/internal/device"
	"shreddy/internal/logging"
)

// Tools внешние команды затирания и разметки.
type Tools struct {
	Overwrite string
	Verify    string
	Partition []string
	Mkfs      string
}

// DefaultPartitionScript is used when no partition command is configured.
const DefaultPartitionScript = "shreddy2-partition.sh"

// Options configures a Pipeline.
type Options struct {
	Tools       Tools
	Patterns    [2]string
	SettleDelay time.Duration
}

// OptionsFromConfig переносит настройки из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Tools: Tools{
			Overwrite: cfg.Tools.Overwrite,
			Verify:    cfg.Tools.Verify,
			Partition: append([]string(nil), cfg.Tools.Partition...),
			Mkfs:      cfg.Tools.Mkfs,
		},
		SettleDelay: cfg.SettleDelay(),
	}
	copy(opts.Patterns[:], cfg.Wipe.Patterns)
	return opts
}

// Reporter receives the outcome of a finished pipeline run.
type Reporter interface {
	Report(rec device.Snapshot, stages []StageResult)
}

// Pipeline проводит одно устройство через все шаги. Безопасен для параллельного
// использования: состояние каждого запуска живёт в Erase.
type Pipeline struct {
	runner   CommandRunner
	opts     Options
	notifier device.StatusNotifier
	reporter Reporter
	logger   *logging.Logger

	ready    func(path string) bool
	sleep    func(time.Duration)
	attempts int
	interval time.Duration
}

// NewPipeline builds a pipeline. notifier and reporter may be nil.
func NewPipeline(runner CommandRunner, opts Options, notifier device.StatusNotifier, reporter Reporter, logger *logging.Logger) *Pipeline {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Pipeline{
		runner:   runner,
		opts:     opts,
		notifier: notifier,
		reporter: reporter,
		logger:   logger,
		ready:    deviceReady,
		sleep:    time.Sleep,
		attempts: PartitionNodeAttempts,
		interval: PartitionNodeInterval,
	}
}

// step описывает один шаг: сообщение RUNNING, сообщение ERROR и действие.
type step struct {
	stage   Stage
	message string
	failure string
	before  func()
	command func(path string) (string, []string)
	wait    bool
}

func (p *Pipeline) steps() []step {
	tools := p.opts.Tools
	return []step{
		{
			stage:   StageOverwritePass1,
			message: "overwriting pass 1/3",
			failure: "erasing failed (pass 1)",
			command: func(path string) (string, []string) {
				return tools.Overwrite, []string{"-w", "-p", "1", "-t", p.opts.Patterns[0], path}
			},
		},
		{
			stage:   StageOverwritePass2,
			message: "overwriting pass 2/3",
			failure: "erasing failed (pass 2)",
			command: func(path string) (string, []string) {
				return tools.Overwrite, []string{"-w", "-p", "1", "-t", p.opts.Patterns[1], path}
			},
		},
		{
			stage:   StageVerify,
			message: "overwriting pass 3/3",
			failure: "erasing failed (verification pass)",
			command: func(path string) (string, []string) {
				return tools.Verify, []string{"-vn", "1", path}
			},
		},
		{
			stage:   StagePartition,
			message: "partitioning disk",
			failure: "partitioning disk failed",
			before: func() {
				if p.opts.SettleDelay > 0 {
					p.sleep(p.opts.SettleDelay)
				}
			},
			command: func(path string) (string, []string) {
				if len(tools.Partition) == 0 {
					return DefaultPartitionScript, []string{path}
				}
				args := append([]string(nil), tools.Partition[1:]...)
				return tools.Partition[0], append(args, path)
			},
		},
		{
			stage:   StageWaitPartition,
			message: "waiting for partition",
			wait:    true,
		},
		{
			stage:   StageMakeFilesystem,
			message: "creating file system",
			failure: "creating file system failed",
			command: func(path string) (string, []string) {
				return tools.Mkfs, []string{PartitionNode(path)}
			},
		},
	}
}

func (p *Pipeline) notify(path string, status device.Severity) {
	if p.notifier != nil {
		p.notifier.SetStatus(path, status)
	}
}

// Erase выполняет шаги по порядку. Первая ошибка завершает конвейер без повторов;
// запись остаётся в ERROR с сообщением шага. Команды блокируют только этот вызов.
func (p *Pipeline) Erase(ctx context.Context, rec *device.Record) error {
	path := rec.Path
	results := make([]StageResult, 0, len(Stages))
	start := time.Now()

	defer func() {
		if p.reporter != nil {
			p.reporter.Report(rec.Snapshot(), results)
		}
	}()

	for _, s := range p.steps() {
		if s.before != nil {
			s.before()
		}

		rec.SetStatus(device.SeverityRunning, s.message)
		p.notify(path, device.SeverityRunning)
		p.logger.Log("INFO", "Stage started", "path", path, "stage", string(s.stage))

		result, err := p.runStep(ctx, s, path)
		results = append(results, result)

		if err != nil {
			rec.SetError(err.Message)
			p.notify(path, device.SeverityError)
			p.logger.Log("ERROR", "Stage failed", "path", path, "stage", string(s.stage), "error", err.Error(), "output", result.Output)
			return err
		}

		p.logger.Log("INFO", fmt.Sprintf("%s - Time for %s was: %.2f s", path, s.stage, result.Duration.Seconds()))
	}

	rec.SetStatus(device.SeverityDone, "done")
	p.notify(path, device.SeverityDone)
	p.logger.Log("INFO", "Completed", "path", path, "model", rec.Model, "duration", time.Since(start))
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, s step, path string) (StageResult, *StageError) {
	result := StageResult{Stage: s.stage, StartTime: time.Now()}

	if s.wait {
		node := PartitionNode(path)
		ok := waitForDevice(node, p.attempts, p.interval, p.ready, p.sleep, p.logger)
		result.Duration = time.Since(result.StartTime)
		if !ok {
			msg := fmt.Sprintf("Device %s does not appear", node)
			result.Error = msg
			return result, &StageError{Stage: s.stage, Message: msg, Err: ErrDeviceNotReady}
		}
		return result, nil
	}

	name, args := s.command(path)
	result.Command = name
	result.Args = args

	out, err := p.runner.Run(ctx, name, args...)
	result.Duration = time.Since(result.StartTime)
	result.ExitCode = out.ExitCode
	result.Output = out.Output
	p.logger.Log("DEBUG", "Command output", "command", name, "args", args, "exit_code", out.ExitCode, "output", out.Output)

	if err == nil && out.ExitCode != 0 {
		err = fmt.Errorf("command %s exited with code %d", name, out.ExitCode)
	}
	if err != nil {
		result.Error = err.Error()
		return result, &StageError{
			Stage:   s.stage,
			Message: s.failure,
			Err:     fmt.Errorf("command %s failed with return code %d: %w", name, out.ExitCode, err),
		}
	}
	return result, nil
}
