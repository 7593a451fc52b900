package resolver

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

func (r *Resolver) fetchSwarm(ctx context.Context, url string) (string, error) {
	if r.swarm == nil {
		return "", errors.New("no swarm gateway configured")
	}
	content, err := r.swarm.Get(ctx, url)
	if err == nil {
		return content, nil
	}
	if r.backend == nil || r.backend.IsVM() {
		return "", err
	}
	r.logger.Debug("swarm gateway failed, retrying through node", zap.String("url", url), zap.Error(err))
	return r.backend.SwarmDownload(ctx, url)
}
