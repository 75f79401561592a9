package utils

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptSecret lit une valeur au terminal sans l'afficher.
func PromptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
