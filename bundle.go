package opcall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// BundleGlueScript uses esbuild to bundle an extension's glue entry
// point with all its imports into a single self-contained script
// suitable for Extension.GlueJS. Glue scripts run in the realm's global
// scope, so the bundle is emitted as an IIFE.
//
// If the source doesn't contain any import statements, it's returned
// as-is to avoid unnecessary processing.
func BundleGlueScript(entryPoint string) (string, error) {
	source, err := os.ReadFile(entryPoint)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(entryPoint), err)
	}

	src := string(source)
	if !needsBundling(src) {
		return src, nil
	}

	opts := esbuild.BuildOptions{
		EntryPoints:   []string{entryPoint},
		AbsWorkingDir: filepath.Dir(entryPoint),
		Bundle:        true,
		Format:        esbuild.FormatIIFE,
		Write:         false,
		Platform:      esbuild.PlatformBrowser,
		Target:        esbuild.ES2020,
		TreeShaking:   esbuild.TreeShakingFalse,
	}

	result := esbuild.Build(opts)

	if len(result.Errors) > 0 {
		var msgs []string
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("bundling %s: %s", filepath.Base(entryPoint), strings.Join(msgs, "; "))
	}

	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling produced no output")
	}

	return string(result.OutputFiles[0].Contents), nil
}

// needsBundling checks if a script contains import statements that
// require bundling. Simple scripts without imports can skip this step.
func needsBundling(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "import(") ||
		strings.Contains(source, "require(")
}
