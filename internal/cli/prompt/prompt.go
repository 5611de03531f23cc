// Package prompt wraps the interactive terminal prompts the statekeep CLI
// needs: overwrite confirmation for init, masked password entry for passwd.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch is returned when the confirmation entry differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IsAborted reports whether err means the user cancelled the prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) ||
		errors.Is(err, promptui.ErrInterrupt) ||
		errors.Is(err, promptui.ErrAbort)
}

// Confirm asks a yes/no question. Enter takes the default; "n" answers
// false without error, Ctrl+C returns ErrAborted.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}

	answer, err := p.Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil:
		if answer == "" {
			return defaultYes, nil
		}
		return false, err
	}

	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// PasswordWithConfirmation asks for a password twice with masked input.
// The first entry must be at least minLength characters; the second must
// match it exactly or ErrPasswordMismatch is returned.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	password, err := masked(promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	})
	if err != nil {
		return "", err
	}

	confirm, err := masked(promptui.Prompt{Label: confirmLabel})
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

func masked(p promptui.Prompt) (string, error) {
	p.Mask = '*'
	result, err := p.Run()
	if err != nil {
		if IsAborted(err) {
			return "", ErrAborted
		}
		return "", err
	}
	return result, nil
}
