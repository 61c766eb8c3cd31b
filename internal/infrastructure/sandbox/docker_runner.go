package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/pkg/tracing"

	"go.uber.org/zap"
)

// DockerRunner executes untrusted code one process per call: a disposable
// container with no network, a fixed memory ceiling and a fixed CPU share.
// The code travels as an environment variable consumed by the image
// entrypoint; no filesystem is shared and nothing is carried between calls.
type DockerRunner struct {
	runtime     string
	images      map[string]string
	memoryLimit string
	cpuLimit    string
	logger      *zap.SugaredLogger
}

type Config struct {
	Runtime     string
	Images      map[string]string
	MemoryLimit string
	CPULimit    string
}

func NewDockerRunner(cfg Config, logger *zap.SugaredLogger) ports.Sandbox {
	return &DockerRunner{
		runtime:     cfg.Runtime,
		images:      cfg.Images,
		memoryLimit: cfg.MemoryLimit,
		cpuLimit:    cfg.CPULimit,
		logger:      logger,
	}
}

// Run never returns a transport-level failure: whatever goes wrong is folded
// into the result. A non-zero exit of the sandboxed program is a normal
// completion whose output sits in Stderr; only a failure to spawn or run the
// container itself sets Error.
func (r *DockerRunner) Run(ctx context.Context, language, code string) *domain.ExecutionResult {
	ctx, span := tracing.TraceExecution(ctx, language)
	defer span.End()

	image, ok := r.images[language]
	if !ok {
		return &domain.ExecutionResult{Error: fmt.Sprintf("unsupported language: %s", language)}
	}

	cmd := exec.CommandContext(ctx, r.runtime, r.args(image, code)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			r.logger.Errorw("sandbox spawn failed",
				"language", language,
				"error", err,
			)
			tracing.RecordError(ctx, err)
			return &domain.ExecutionResult{Error: err.Error()}
		}
	}

	return &domain.ExecutionResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
}

func (r *DockerRunner) args(image, code string) []string {
	return []string{
		"run",
		"--rm",
		"--network=none",
		"--memory=" + r.memoryLimit,
		"--cpus=" + r.cpuLimit,
		"-e", "CODE=" + code,
		image,
	}
}
