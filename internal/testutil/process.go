package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tagcheck/pkg/studentagent"
)

// HelperEnv names the helper agent a re-executed test binary should serve.
const HelperEnv = "TAGCHECK_HELPER_AGENT"

// ServeHelperAgent turns the current test binary into a protocol agent when
// HelperEnv is set. Call it first thing in TestMain; it does not return when
// the binary was started as a helper.
func ServeHelperAgent() {
	name := os.Getenv(HelperEnv)
	if name == "" {
		return
	}
	ctor, ok := StudentConstructors[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown helper agent %q\n", name)
		os.Exit(2)
	}
	if err := studentagent.Serve(ctor); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

// WriteScript writes an executable shell script with the given body.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// HelperScript returns a shell script body that re-executes the current test
// binary as the named helper agent. The test package must call
// ServeHelperAgent from TestMain.
func HelperScript(t *testing.T, helper string) string {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	return fmt.Sprintf("%s=%s\nexport %s\nexec %s -test.run='^$'\n",
		HelperEnv, helper, HelperEnv, shellQuote(exe))
}

// WriteHelperAgent writes an executable script serving the named helper agent.
func WriteHelperAgent(t *testing.T, dir, name, helper string) string {
	t.Helper()
	return WriteScript(t, dir, name, HelperScript(t, helper))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
