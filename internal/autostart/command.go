package autostart

import (
	"fmt"
	"strings"
)

// AppName is the value name used for the per-user autostart entry.
const AppName = "MonerisAgent"

// runCommand builds the command line stored in the autostart entry. The
// executable is quoted because install paths usually contain spaces.
func runCommand(executablePath string, args ...string) string {
	command := fmt.Sprintf("\"%s\"", executablePath)

	var kept []string
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			kept = append(kept, arg)
		}
	}
	if len(kept) > 0 {
		command += " " + strings.Join(kept, " ")
	}

	return command
}
