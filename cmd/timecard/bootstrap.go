// ABOUTME: User provisioning commands: bootstrap creates an account, hash-password prints a credential
// ABOUTME: Passwords are read from the terminal without echo or from stdin for scripting

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389/timecard/internal/password"
	"github.com/2389/timecard/internal/store"
)

// minPasswordLength matches the API's change-password rule.
const minPasswordLength = 8

// readPassword is swapped out in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

type bootstrapOptions struct {
	username      string
	fullName      string
	role          string
	passwordStdin bool
}

func newBootstrapCmd() *cobra.Command {
	var opts bootstrapOptions

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create a user account in the configured database",
		Long: `Create a user account directly in the database. Use it to provision the
first admin before anyone can log in through the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			pw, err := obtainPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), opts.passwordStdin, true)
			if err != nil {
				return err
			}

			users, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("opening user store: %w", err)
			}
			defer users.Close()

			codec := password.NewCodec(password.WithConcurrency(cfg.Auth.KDFConcurrency))
			user, err := runBootstrap(cmd.Context(), users, codec, opts, pw)
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			green.Fprint(cmd.OutOrStdout(), "✓ ")
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (id %d) in %s\n", user.Role, user.Username, user.ID, cfg.Database.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "Login name (required)")
	cmd.Flags().StringVarP(&opts.fullName, "name", "n", "", "Full display name (required)")
	cmd.Flags().StringVar(&opts.role, "role", string(store.RoleAdmin), "Role: admin or employee")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// runBootstrap validates the options, hashes the password and stores the user.
func runBootstrap(ctx context.Context, users store.UserStore, codec *password.Codec, opts bootstrapOptions, plaintext string) (*store.User, error) {
	username := strings.TrimSpace(opts.username)
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty or whitespace only")
	}
	fullName := strings.TrimSpace(opts.fullName)
	if fullName == "" {
		return nil, fmt.Errorf("display name cannot be empty or whitespace only")
	}
	if len(fullName) > 100 {
		return nil, fmt.Errorf("display name exceeds maximum length of 100 characters")
	}
	role := store.Role(opts.role)
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q: must be admin or employee", opts.role)
	}
	if len(plaintext) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	credential, err := codec.Hash(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Username: username,
		Password: credential,
		FullName: fullName,
		Role:     role,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			return nil, fmt.Errorf("user %q already exists", username)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func newHashPasswordCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the stored credential for a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := obtainPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), fromStdin, false)
			if err != nil {
				return err
			}
			credential, err := password.NewCodec().Hash(cmd.Context(), pw)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), credential)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

// obtainPassword reads a password from the first line of in, or prompts on
// the terminal without echo. confirm asks for the password twice.
func obtainPassword(in io.Reader, prompt io.Writer, fromStdin, confirm bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return "", fmt.Errorf("password cannot be empty")
		}
		return pw, nil
	}

	pw, err := promptPassword(prompt, "Password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if confirm {
		again, err := promptPassword(prompt, "Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != pw {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	return pw, nil
}

func promptPassword(w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
