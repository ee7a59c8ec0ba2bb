package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilbumi/satin/internal/auth"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

// useDataDir points the configuration at a fresh data directory.
func useDataDir(t *testing.T, driver string) {
	t.Helper()
	t.Setenv("SATIN_DATA_DIR", t.TempDir())
	t.Setenv("SATIN_STORE_DRIVER", driver)
	t.Setenv("SATIN_ENV", "development")
}

func TestGenKey(t *testing.T) {
	key := strings.TrimSpace(execute(t, "gen-key"))
	assert.Len(t, key, 64)

	_, err := auth.NewTokenService(key, 0)
	assert.NoError(t, err)
}

func TestHashKey(t *testing.T) {
	hash := strings.TrimSpace(execute(t, "hash-key", "s3cret"))

	assert.True(t, auth.IsHashed(hash))
	assert.True(t, auth.VerifyAPIKey(hash, "s3cret"))
	assert.False(t, auth.VerifyAPIKey(hash, "guess"))
}

func TestOpenAPI(t *testing.T) {
	out := execute(t, "openapi")
	assert.Contains(t, out, `"/api/v1/projects"`)
	assert.Contains(t, out, "Satin API")

	out = execute(t, "openapi", "--format", "yaml")
	assert.Contains(t, out, "/api/v1/projects:")
}

func TestSeedThenInspect(t *testing.T) {
	for _, driver := range []string{"badger", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			useDataDir(t, driver)

			out := execute(t, "seed", "--images", "2", "--annotations", "2", "--project", "Harbour "+driver)
			assert.Contains(t, out, "Created 6 tags")
			assert.Contains(t, out, "Created 2 images with 4 annotations")

			out = execute(t, "inspect")
			assert.Regexp(t, `projects\s+1\n`, out)
			assert.Regexp(t, `images\s+2\n`, out)
			assert.Regexp(t, `annotations\s+4\n`, out)
			assert.Regexp(t, `tags\s+6\n`, out)
			assert.Regexp(t, `tasks\s+2\n`, out)

			out = execute(t, "tags", "tree")
			assert.Contains(t, out, "Vehicle")
			assert.Contains(t, out, "    Heron")

			out = execute(t, "reindex")
			assert.Contains(t, out, "Indexed")
		})
	}
}

func TestOpenAPI_UnknownFormat(t *testing.T) {
	rootCmd.SetArgs([]string{"openapi", "--format", "toml"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		openapiFormat = "json"
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
