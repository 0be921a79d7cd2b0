package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "casereview/pkg/domain-errors"
)

func writeStakes(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stakes.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"casectl"}, args...))
	return out.String(), err
}

func TestEvaluate(t *testing.T) {
	t.Run("compliant breakdown", func(t *testing.T) {
		path := writeStakes(t, `[
			{"partyName":"Kofi","nationality":"ghana","percentage":"60","investmentAmount":"600"},
			{"partyName":"Li","nationality":"China","percentage":"40","investmentAmount":"400"}
		]`)

		out, err := runCLI(t, "evaluate", "--file", path)
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "Compliant", result["classification"])
	})

	t.Run("required and jurisdiction flags", func(t *testing.T) {
		path := writeStakes(t, `[
			{"partyName":"Ama","nationality":"Kenya","percentage":"49","investmentAmount":"49"},
			{"partyName":"Ben","nationality":"France","percentage":"51","investmentAmount":"51"}
		]`)

		out, err := runCLI(t, "evaluate", "-f", path, "--required", "51", "--jurisdiction", "Kenya")
		require.NoError(t, err)
		assert.Contains(t, out, `"classification": "Marginal"`)
	})

	t.Run("broken structure", func(t *testing.T) {
		path := writeStakes(t, `[
			{"partyName":"Kofi","nationality":"Ghana","percentage":"50","investmentAmount":"50"},
			{"partyName":"Li","nationality":"China","percentage":"40","investmentAmount":"40"}
		]`)

		_, err := runCLI(t, "evaluate", "--file", path)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEquityStructure))
	})

	t.Run("invalid required percentage", func(t *testing.T) {
		path := writeStakes(t, `[{"partyName":"Kofi","nationality":"Ghana","percentage":"100","investmentAmount":"1"}]`)

		_, err := runCLI(t, "evaluate", "--file", path, "--required", "lots")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "evaluate", "--file", filepath.Join(t.TempDir(), "absent.json"))
		require.ErrorContains(t, err, "open stakes")
	})
}
