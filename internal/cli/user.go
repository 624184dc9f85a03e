package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"daycal/internal/auth"
	"daycal/internal/store"
)

// UserOptions holds flags for the user subcommands.
type UserOptions struct {
	*RootOptions
	PasswordStdin bool
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}
	cmd.PersistentFlags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from the first line of stdin")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Example: `  daycal user add alice
  echo "$PASSWORD" | daycal user add alice --password-stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, opts, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "passwd <username>",
		Short: "Change an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserPasswd(cmd, opts, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, opts)
		},
	})
	return cmd
}

func newPasswordHash(cmd *cobra.Command, opts *UserOptions) (string, error) {
	pw, err := readPassword(cmd, opts.PasswordStdin)
	if err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to hash password", err)
	}
	return hash, nil
}

func runUserAdd(cmd *cobra.Command, opts *UserOptions, username string) error {
	if username == "" {
		return NewExitError(ExitCommandError, "username cannot be empty")
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	hash, err := newPasswordHash(cmd, opts)
	if err != nil {
		return err
	}
	u, err := st.CreateUser(cmd.Context(), username, hash)
	if errors.Is(err, store.ErrUserExists) {
		return NewExitError(ExitCommandError, fmt.Sprintf("user %q already exists", username))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to create user", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
	return nil
}

func runUserPasswd(cmd *cobra.Command, opts *UserOptions, username string) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := lookupUser(cmd, st, username); err != nil {
		return err
	}
	hash, err := newPasswordHash(cmd, opts)
	if err != nil {
		return err
	}
	if err := st.SetPassword(cmd.Context(), username, hash); err != nil {
		return WrapExitError(ExitFailure, "failed to set password", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", username)
	return nil
}

func runUserList(cmd *cobra.Command, opts *UserOptions) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list users", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\n", u.Username, u.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}
