package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lumafin/go-dbgateway/config"
	"github.com/lumafin/go-dbgateway/logger"
)

// Hydrator merges externally stored credentials into the process
// configuration. It runs at most once per process; concurrent callers share
// the single attempt. Failures are logged and swallowed so explicit-config
// deployments without a secret store keep working.
type Hydrator struct {
	cfg   *config.Config
	fetch Fetcher
	log   logger.LoggerInterface

	once sync.Once
	err  error
}

func NewHydrator(cfg *config.Config, fetch Fetcher, log logger.LoggerInterface) *Hydrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hydrator{cfg: cfg, fetch: fetch, log: log}
}

// Hydrate resolves the secret and fills unset configuration fields. Safe to
// call concurrently; every call after the first is a no-op.
func (h *Hydrator) Hydrate(ctx context.Context) {
	h.once.Do(func() {
		h.err = h.run(ctx)
		if h.err != nil {
			h.log.Errorw("secret hydration failed; continuing with explicit configuration",
				"secret_id", h.cfg.SecretID,
				"error", h.err,
			)
		}
	})
}

// Err reports the outcome of the single hydration attempt. Hosts that want
// to fail hard on a misconfigured secret store can check it at startup.
func (h *Hydrator) Err() error { return h.err }

func (h *Hydrator) run(ctx context.Context) error {
	if h.fetch == nil {
		return nil
	}

	payload, err := h.fetch.Fetch(ctx, h.cfg.SecretID)
	if err != nil {
		return err
	}

	var blob map[string]json.RawMessage
	if err := json.Unmarshal(payload, &blob); err != nil {
		return fmt.Errorf("parsing secret payload: %w", err)
	}

	filled := applyCredentials(h.cfg, blob)
	h.log.Infow("database credentials hydrated",
		"secret_id", h.cfg.SecretID,
		"fields", filled,
	)
	return nil
}
