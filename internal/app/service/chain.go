package service

import (
	"context"

	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
)

// ChainOutcome is a successful chain run: the fetched artifact, the backend
// that produced it and the trail of every backend considered on the way,
// recorded as "name:outcome".
type ChainOutcome struct {
	Artifact *domain.Artifact
	Backend  string
	Trail    []string
}

// ChainExecutor runs a platform's backend chain in configured order.
//
// Execution is strictly sequential: one backend at a time, stopping at the
// first success. Every failure class advances to the next backend; the class
// only changes what gets logged and recorded. Backends bound their own
// attempts (subprocess timeouts, HTTP client timeouts), so the executor adds
// no per-attempt deadline of its own.
type ChainExecutor struct {
	chains map[domain.Platform][]domain.Backend
	logger *zap.Logger
}

// NewChainExecutor creates a ChainExecutor over the per-platform chains.
func NewChainExecutor(chains map[domain.Platform][]domain.Backend, logger *zap.Logger) *ChainExecutor {
	return &ChainExecutor{
		chains: chains,
		logger: logger,
	}
}

// Run fetches the referenced media through the platform's chain, downloading
// into destDir. Returns *domain.AllBackendsFailedError when no backend
// produced an artifact.
func (e *ChainExecutor) Run(ctx context.Context, ref domain.MediaRef, destDir string) (*ChainOutcome, error) {
	chain := e.chains[ref.Platform]

	var (
		trail    []string
		failures []domain.BackendFailure
	)

	for _, backend := range chain {
		name := backend.Name()

		if !backend.Supports(ref.Kind) {
			trail = append(trail, name+":skip")
			e.logger.Debug("backend skipped",
				zap.String("backend", name),
				zap.String("ref", ref.Key()),
				zap.String("kind", string(ref.Kind)),
			)
			continue
		}

		artifact, err := backend.Fetch(ctx, ref, destDir)
		if err == nil {
			trail = append(trail, name+":ok")
			e.logger.Info("backend fetch succeeded",
				zap.String("backend", name),
				zap.String("ref", ref.Key()),
				zap.String("path", artifact.Path),
			)

			return &ChainOutcome{Artifact: artifact, Backend: name, Trail: trail}, nil
		}

		class := backend.Classify(err)
		trail = append(trail, name+":"+string(class))
		failures = append(failures, domain.BackendFailure{Backend: name, Class: class, Err: err})

		e.logger.Warn("backend fetch failed, trying next",
			zap.String("backend", name),
			zap.String("ref", ref.Key()),
			zap.String("class", string(class)),
			zap.Error(err),
		)

		// A dead run context means the remaining backends would fail the
		// same way; stop burning attempts.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, &domain.AllBackendsFailedError{Ref: ref, Failures: failures}
}

// Names returns the configured backend names per platform, in chain order.
func (e *ChainExecutor) Names() map[domain.Platform][]string {
	names := make(map[domain.Platform][]string, len(e.chains))
	for platform, chain := range e.chains {
		ordered := make([]string, len(chain))
		for i, b := range chain {
			ordered[i] = b.Name()
		}
		names[platform] = ordered
	}

	return names
}
