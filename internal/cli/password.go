package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword reads a new password, either the first line of stdin or
// twice from the terminal with echo disabled.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", WrapExitError(ExitCommandError, "failed to read password", err)
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return "", NewExitError(ExitCommandError, "password cannot be empty")
		}
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", NewExitError(ExitCommandError, "stdin is not a terminal; use --password-stdin")
	}

	prompt := func(label string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}

	pw, err := prompt("Enter password:   ")
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read password", err)
	}
	if pw == "" {
		return "", NewExitError(ExitCommandError, "password cannot be empty")
	}
	confirm, err := prompt("Confirm password: ")
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read password", err)
	}
	if pw != confirm {
		return "", NewExitError(ExitCommandError, "passwords do not match")
	}
	return pw, nil
}
