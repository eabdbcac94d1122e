package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarf-type-reader/internal/testutil"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

// run executes the CLI with an empty config file so the user's own config
// does not leak into tests.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cfg := testutil.WriteFile(t, "config.yaml", nil)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(testutil.NewTestContext(t))
	return stdout.String(), stderr.String(), err
}

// copySelf copies the test binary into a temporary directory so per-file
// documents land there.
func copySelf(t *testing.T) string {
	t.Helper()

	data, err := os.ReadFile(testutil.SelfBinary(t))
	require.NoError(t, err)
	return testutil.WriteFile(t, "app", data)
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dwarf-type-reader version")
	assert.Contains(t, stdout, "Go version:")
}

func TestSchema(t *testing.T) {
	stdout, _, err := run(t, "schema")
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &raw))
	assert.Equal(t, "dwarf-type-reader document", raw["title"])
}

func TestExtract_MissingInput(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "a.out")

	stdout, _, err := run(t, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 inputs failed")
	assert.ErrorIs(t, err, os.ErrNotExist)

	// The document is still emitted, just empty.
	assert.JSONEq(t, `{"locals":[],"globals":[],"types":{}}`, stdout)
}

func TestExtract_BadInputDoesNotHideGoodOne(t *testing.T) {
	exe := copySelf(t)
	bad := testutil.WriteFile(t, "notes.txt", []byte("not an object file"))

	stdout, _, err := run(t, "--format", "yaml", bad, exe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 inputs failed")

	doc, err := document.Unmarshal([]byte(stdout), document.FormatYAML)
	require.NoError(t, err)
	assert.NotZero(t, doc.Len())
}

func TestExtract_OutputFile(t *testing.T) {
	exe := copySelf(t)
	out := filepath.Join(t.TempDir(), "merged.pb")

	stdout, _, err := run(t, "--format", "protobuf", "-o", out, "--workers", "1", exe)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc, err := document.Unmarshal(data, document.FormatProtobuf)
	require.NoError(t, err)
	assert.NotZero(t, doc.Len())
}

func TestExtract_MergedInputsKeepTheirStructs(t *testing.T) {
	exe := copySelf(t)

	stdout, _, err := run(t, exe, exe)
	require.NoError(t, err)

	doc, err := document.Unmarshal([]byte(stdout), document.FormatJSON)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Types)

	counts := map[string]int{}
	for name := range doc.Types {
		switch {
		case strings.HasPrefix(name, "f0."):
			counts["f0."]++
		case strings.HasPrefix(name, "f1."):
			counts["f1."]++
		default:
			t.Errorf("struct %s has no input prefix", name)
		}
	}
	assert.Equal(t, counts["f0."], counts["f1."])
}

func TestExtract_PerFile(t *testing.T) {
	exe := copySelf(t)

	stdout, _, err := run(t, "--per-file", exe)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(exe + ".debuginfo.json")
	require.NoError(t, err)
	doc, err := document.Unmarshal(data, document.FormatJSON)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Types)
}

func TestExtract_PCFilter(t *testing.T) {
	exe := copySelf(t)

	stdout, _, err := run(t, "--pc", "0x1", exe)
	require.NoError(t, err)

	doc, err := document.Unmarshal([]byte(stdout), document.FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, doc.Locals)
}

func TestExtract_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"pointer size", []string{"--pointer-size", "2"}},
		{"arch", []string{"--arch", "mips"}},
		{"format", []string{"--format", "xml"}},
		{"workers", []string{"--workers", "0"}},
		{"per-file with output", []string{"--per-file", "-o", "out.json"}},
		{"log level", []string{"--log-level", "loud"}},
		{"pc", []string{"--pc", "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExtract_EnvOverride(t *testing.T) {
	t.Setenv("DWARF_TYPE_READER_FORMAT", "yaml")
	missing := filepath.Join(t.TempDir(), "a.out")

	stdout, _, err := run(t, missing)
	require.Error(t, err)
	assert.Contains(t, stdout, "locals: []")

	// Flags win over the environment.
	stdout, _, err = run(t, "--format", "json", missing)
	require.Error(t, err)
	assert.JSONEq(t, `{"locals":[],"globals":[],"types":{}}`, stdout)
}

func TestStats(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "a.out")

	stdout, _, err := run(t, "stats", "--format", "json", missing)
	require.Error(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, missing, rows[0]["path"])
	assert.NotEmpty(t, rows[0]["error"])

	_, _, err = run(t, "stats", "--format", "xml", missing)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestStats_Self(t *testing.T) {
	exe := copySelf(t)

	stdout, _, err := run(t, "stats", exe)
	require.NoError(t, err)
	assert.Contains(t, stdout, "PATH")
	assert.Contains(t, stdout, exe)
}
