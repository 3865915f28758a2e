package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minPasswordLength = 6

var (
	errMismatch = errors.New("passwords do not match")
	errTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// promptFunc reads one password after printing prompt.
type promptFunc func(prompt string) ([]byte, error)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	prompt := newPrompt(os.Stdin, os.Stderr)

	var err error
	switch command := os.Args[1]; command {
	case "hash":
		err = hashPassword(prompt, os.Stdout, bcrypt.DefaultCost)
	case "check":
		if len(os.Args) < 3 {
			printUsage(os.Stdout)
			os.Exit(1)
		}
		err = checkPassword(prompt, os.Stdout, os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stdout)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "kairos console password tool")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: hashpw <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  hash          - Prompt for a password and print its bcrypt hash")
	fmt.Fprintln(w, "  check <hash>  - Prompt for a password and verify it against hash")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Set the printed hash as console.password_hash or KAIROS_CONSOLE_PASSWORD_HASH.")
}

// newPrompt reads without echo from a terminal, or one line per password
// otherwise so the tool can be scripted.
func newPrompt(in *os.File, out io.Writer) promptFunc {
	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
	if term.IsTerminal(fd) {
		return func(prompt string) ([]byte, error) {
			fmt.Fprint(out, prompt)
			password, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return password, err
		}
	}
	return linePrompt(in)
}

func linePrompt(r io.Reader) promptFunc {
	reader := bufio.NewReader(r)
	return func(string) ([]byte, error) {
		line, err := reader.ReadBytes('\n')
		if err != nil && (!errors.Is(err, io.EOF) || len(line) == 0) {
			return nil, err
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
}

func hashPassword(prompt promptFunc, out io.Writer, cost int) error {
	password, err := prompt("New Password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	confirm, err := prompt("Confirm Password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if !bytes.Equal(password, confirm) {
		return errMismatch
	}
	if len(password) < minPasswordLength {
		return errTooShort
	}

	hash, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	fmt.Fprintln(out, string(hash))
	return nil
}

func checkPassword(prompt promptFunc, out io.Writer, hash string) error {
	password, err := prompt("Password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), password); err != nil {
		return fmt.Errorf("password does not match: %w", err)
	}
	fmt.Fprintln(out, "Password matches.")
	return nil
}
