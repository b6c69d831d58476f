package ui

import (
	"github.com/charmbracelet/huh"
)

// Confirmer asks the operator a yes/no question.
type Confirmer func(title, description string) (bool, error)

// Confirm asks through an interactive huh prompt. It defaults to no.
func Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Always answers every question with answer. It backs --yes and
// non-interactive sessions.
func Always(answer bool) Confirmer {
	return func(string, string) (bool, error) {
		return answer, nil
	}
}
