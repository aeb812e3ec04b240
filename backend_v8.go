//go:build v8

package opcall

import (
	"context"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/v8engine"
)

func newBackend(ctx context.Context, cfg core.RuntimeConfig, exts []core.Extension) (backend, error) {
	return v8engine.NewRealm(ctx, cfg, exts)
}
