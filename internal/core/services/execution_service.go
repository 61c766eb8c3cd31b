package services

import (
	"context"
	"time"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"

	"go.uber.org/zap"
)

type executionService struct {
	sandbox ports.Sandbox
	logger  *zap.SugaredLogger
}

func NewExecutionService(sandbox ports.Sandbox, logger *zap.SugaredLogger) ports.ExecutionService {
	return &executionService{
		sandbox: sandbox,
		logger:  logger,
	}
}

// Execute runs code through the sandbox. The returned error is reserved for
// handler-level faults; everything that goes wrong inside the execution
// path is carried in the result itself.
func (s *executionService) Execute(ctx context.Context, language, code string) (*domain.ExecutionResult, error) {
	start := time.Now()

	result := s.sandbox.Run(ctx, language, code)
	if result == nil {
		result = &domain.ExecutionResult{Error: domain.ErrRunnerUnavailable.Error()}
	}

	s.logger.Infow("execution finished",
		"language", language,
		"duration_ms", time.Since(start).Milliseconds(),
		"failed", result.Error != "",
	)

	return result, nil
}
