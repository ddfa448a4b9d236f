package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/envutil"
	"lokkagw/internal/infra/process"
	"lokkagw/internal/infra/telemetry"
)

// groupCleanup kills whatever a platform hook attached to the child, such as
// its process group.
type groupCleanup func()

type CommandLauncher struct {
	logger *zap.Logger
}

type CommandLauncherOptions struct {
	Logger *zap.Logger
}

func NewCommandLauncher(opts CommandLauncherOptions) *CommandLauncher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandLauncher{logger: logger.Named("launcher")}
}

// Start launches the child with the parent environment plus spec.Env.
// The returned StopFn closes the pipes, kills the process group and waits.
func (l *CommandLauncher) Start(ctx context.Context, spec domain.ChildSpec) (domain.IOStreams, domain.StopFn, error) {
	if len(spec.Cmd) == 0 {
		return domain.IOStreams{}, nil, fmt.Errorf("%w: cmd is required", domain.ErrInvalidCommand)
	}
	started := time.Now()
	fields := []zap.Field{
		zap.String("executable", spec.Cmd[0]),
		zap.String("argCount", strconv.Itoa(len(spec.Cmd)-1)),
	}
	if spec.Cwd != "" {
		fields = append(fields, zap.String("cwd", spec.Cwd))
	}
	if len(spec.Env) > 0 {
		// Values are credentials; only the keys are logged.
		fields = append(fields, zap.Strings("envKeys", envutil.SortedKeys(spec.Env)))
	}
	l.logger.Info("starting child process", append(fields, telemetry.EventField(telemetry.EventStartAttempt))...)

	cmd := exec.CommandContext(ctx, spec.Cmd[0], spec.Cmd[1:]...)
	if spec.Cwd != "" {
		cmd.Dir = spec.Cwd
	}
	cmd.Env = envutil.ChildEnv(os.Environ(), spec.Env)
	cleanup := setupProcessHandling(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.IOStreams{}, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domain.IOStreams{}, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.IOStreams{}, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		err = classifyStartError(err)
		l.logger.Error("child process failed to start",
			telemetry.EventField(telemetry.EventStartFailure),
			zap.Error(err),
		)
		return domain.IOStreams{}, nil, fmt.Errorf("start command: %w", err)
	}
	l.logger.Info("child process started",
		telemetry.EventField(telemetry.EventStartSuccess),
		zap.Int("pid", cmd.Process.Pid),
		telemetry.DurationField(time.Since(started)),
	)

	name := spec.Name
	if name == "" {
		name = spec.Cmd[0]
	}
	downstreamLogger := l.logger.With(
		zap.String(telemetry.FieldLogSource, telemetry.LogSourceDownstream),
		telemetry.ChildField(name),
		zap.String(telemetry.FieldLogStream, "stderr"),
	)
	go mirrorStderr(stderr, downstreamLogger)

	stop := func(stopCtx context.Context) error {
		if err := stdin.Close(); err != nil {
			l.logger.Warn("close stdin failed", zap.Error(err))
		}
		if cleanup != nil {
			cleanup()
		}
		err := process.Wait(stopCtx, cmd)
		if err != nil {
			l.logger.Warn("child process stop failed",
				telemetry.EventField(telemetry.EventStopFailure),
				zap.Int("exitCode", process.ExitCode(err)),
				zap.Error(err),
			)
			return err
		}
		l.logger.Info("child process stopped", telemetry.EventField(telemetry.EventStopSuccess))
		return nil
	}

	return domain.IOStreams{Reader: stdout, Writer: stdin}, stop, nil
}

const maxStderrLineLength = 32 * 1024

func mirrorStderr(reader io.Reader, logger *zap.Logger) {
	buf := bufio.NewReaderSize(reader, 8192)
	for {
		line, isPrefix, err := buf.ReadLine()
		if len(line) > 0 {
			trimmed := strings.TrimRight(string(line), "\r\n")
			if trimmed != "" {
				if len(trimmed) > maxStderrLineLength {
					logger.Warn("stderr line truncated",
						zap.Int("originalLength", len(trimmed)),
						zap.Int("maxLength", maxStderrLineLength),
					)
					trimmed = trimmed[:maxStderrLineLength] + truncatedSuffix
				}
				logger.Info(trimmed)
			}
			for isPrefix && err == nil {
				_, isPrefix, err = buf.ReadLine()
			}
		}
		if err != nil {
			return
		}
	}
}

func classifyStartError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, err.Error())
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, err.Error())
	}
	return err
}

var _ domain.Launcher = (*CommandLauncher)(nil)
