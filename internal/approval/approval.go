// Package approval handles the interactive confirmation required before a
// security-bypass analysis run. Non-interactive sessions are denied
// automatically.
package approval

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Confirmed  bool
	UserAction string
}

type Prompt struct {
	Actor string
	Mode  string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask presents the bypass warning and reads the decision from stdin.
func Ask(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Confirmed:  false,
			UserAction: "auto_deny_non_interactive",
		}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║              ⚠️  SECURITY BYPASS REQUESTED                    ║")
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Actor: %s (mode: %s)\n", p.Actor, p.Mode)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "The prompt classifier and provider guardrails will be skipped")
	fmt.Fprintln(os.Stderr, "for this transaction. The request is still recorded in the")
	fmt.Fprintln(os.Stderr, "audit trail with the bypass flag set.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  [y] Proceed with bypass")
	fmt.Fprintln(os.Stderr, "  [n] Run the security checks as usual")
	fmt.Fprintln(os.Stderr, "")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Fprint(os.Stderr, "Your choice [y/n]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return Result{
				Confirmed:  false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "y", "yes":
			return Result{
				Confirmed:  true,
				UserAction: "bypass_confirmed",
			}
		case "n", "no":
			return Result{
				Confirmed:  false,
				UserAction: "bypass_declined",
			}
		default:
			fmt.Fprintln(os.Stderr, "Invalid input. Please enter 'y' or 'n'.")
		}
	}
}
