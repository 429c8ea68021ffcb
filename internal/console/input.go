// Package console reads operator input for the command-line tools.
package console

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Prompt prints prompt to w and reads one trimmed line from reader. If EOF
// follows some input, the partial line is returned.
func Prompt(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a password from the terminal without echo.
func Password(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// NewPassword asks for a password twice and returns it when both entries
// match and are not empty.
func NewPassword(w io.Writer) ([]byte, error) {
	pw, err := Password(w, "Password")
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(pw)) == 0 {
		return nil, errors.New("password must not be empty")
	}
	confirm, err := Password(w, "Repeat password")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pw, confirm) {
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}
