// Package prompt reads credentials and confirmations from the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// ErrEmptySecret is returned by ReadSecret when the input holds no password.
var ErrEmptySecret = errors.New("no password on standard input")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

// wrapError converts promptui interrupt/abort errors to ErrAborted.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Username prompts for a login name. Empty input is refused.
func Username(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Validate: notEmpty("username"),
	}

	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// Password prompts for a password with masking. Empty input is refused:
// directories accept an empty password as an anonymous bind.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: notEmpty("password"),
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// ReadSecret reads a password from the first line of r, as for
// --password-stdin. The trailing newline is dropped; other whitespace is
// kept since it may be part of the password.
func ReadSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return "", ErrEmptySecret
	}
	return line, nil
}

// Confirm prompts the user for yes/no confirmation.
// Returns ErrAborted if the user presses Ctrl+C.
func Confirm(label string, defaultYes bool) (bool, error) {
	defaultStr := "y/N"
	if defaultYes {
		defaultStr = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, defaultStr),
		IsConfirm: true,
	}

	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// promptui returns ErrAbort for "n" response
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if result == "" {
			return defaultYes, nil
		}
		return false, err
	}

	answer := strings.ToLower(result)
	return answer == "y" || answer == "yes", nil
}

func notEmpty(what string) func(string) error {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}
