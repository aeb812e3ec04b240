//go:build !v8

package opcall

import (
	"context"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/quickjs"
)

func newBackend(ctx context.Context, cfg core.RuntimeConfig, exts []core.Extension) (backend, error) {
	return quickjs.NewRealm(ctx, cfg, exts)
}
