package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readCredentials prompts for an email and password. The password prompt
// hides input when stdin is a terminal.
func readCredentials() (string, string, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("read email: %w", err)
	}
	email = strings.TrimSpace(email)

	fmt.Print("Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		return email, string(raw), nil
	}

	password, err := reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	return email, strings.TrimSpace(password), nil
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register a new parent account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		email, password, err := readCredentials()
		if err != nil {
			return err
		}

		if err := a.rec.SignUp(cmd.Context(), email, password); err != nil {
			return err
		}
		if err := a.saveSession(); err != nil {
			return err
		}
		fmt.Println("Account created. Signed in as", email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		email, password, err := readCredentials()
		if err != nil {
			return err
		}

		if err := a.rec.SignIn(cmd.Context(), email, password); err != nil {
			return err
		}
		if err := a.saveSession(); err != nil {
			return err
		}
		fmt.Println("Signed in as", email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and discard the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		// Local state is cleared regardless of the remote outcome.
		signOutErr := a.rec.SignOut(cmd.Context())
		if err := a.saveSession(); err != nil {
			return err
		}
		if signOutErr != nil {
			return signOutErr
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		sess := a.rec.Session()
		if sess == nil {
			fmt.Println("Not signed in")
			return nil
		}
		fmt.Println(sess.Email)
		if profile := a.rec.Profile(); profile != nil && profile.Name != "" {
			fmt.Println("Name:", profile.Name)
		}
		return nil
	},
}
