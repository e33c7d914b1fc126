package loader

import (
	_ "embed"
	"strings"
)

// runnerSource imports a .py agent file and serves its StudentAgent class
// over the line protocol.
//
//go:embed runner.py
var runnerSource string

// DefaultPython runs the runner when no interpreter is configured.
const DefaultPython = "python3"

func pythonBinary(interpreter string) string {
	if strings.TrimSpace(interpreter) == "" {
		return DefaultPython
	}
	return interpreter
}

// pythonCommand passes the runner with -c so nothing is written to disk.
// Unbuffered output keeps responses flowing line by line.
func pythonCommand(interpreter, abs string) []string {
	argv := strings.Fields(pythonBinary(interpreter))
	return append(argv, "-u", "-c", runnerSource, abs)
}
