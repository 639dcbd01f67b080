package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vecgrid/internal/store"
)

// PropsOptions holds flags for the props commands.
type PropsOptions struct {
	*RootOptions
	Database string
}

// NewPropsCommand creates the props command and its get, set, list and
// delete subcommands.
func NewPropsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PropsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "props",
		Short: "Read and write stored properties",
		Long: `Read and write the key/value properties kept next to the journal.

The run command records the last project it started under "last_project".

Examples:
  vecgrid props list --db ./vecgrid.db
  vecgrid props get last_project --db ./vecgrid.db
  vecgrid props set owner ops --db ./vecgrid.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $VECGRID_DB)")

	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Print one property",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropsGet(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set <key> <value>",
		Short:         "Store a property",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropsSet(opts, args[0], args[1], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Print every property",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropsList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "delete <key>",
		Short:         "Remove a property",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropsDelete(opts, args[0], cmd)
		},
	})

	return cmd
}

func (o *PropsOptions) database() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config().DB
}

func runPropsGet(opts *PropsOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := openExisting(opts.database())
	if err != nil {
		return err
	}
	defer st.Close()

	value, err := st.GetProperty(cmd.Context(), key)
	if errors.Is(err, store.ErrPropertyNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("property not found: %s", key), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("property not found: %s", key))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read property", err)
	}

	if formatter.JSON() {
		return formatter.Success(store.Property{Key: key, Value: value})
	}
	fmt.Fprintln(formatter.Writer, value)
	return nil
}

func runPropsSet(opts *PropsOptions, key, value string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if key == "" {
		return NewExitError(ExitCommandError, "property key must not be empty")
	}

	st, err := store.Open(opts.database())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if err := st.SetProperty(cmd.Context(), key, value); err != nil {
		return WrapExitError(ExitCommandError, "failed to write property", err)
	}

	if formatter.JSON() {
		return formatter.Success(store.Property{Key: key, Value: value})
	}
	fmt.Fprintf(formatter.Writer, "%s = %s\n", key, value)
	return nil
}

func runPropsList(opts *PropsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := openExisting(opts.database())
	if err != nil {
		return err
	}
	defer st.Close()

	props, err := st.ListProperties(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list properties", err)
	}

	if formatter.JSON() {
		return formatter.Success(props)
	}
	if len(props) == 0 {
		fmt.Fprintln(formatter.Writer, "(no properties)")
		return nil
	}
	for _, p := range props {
		fmt.Fprintf(formatter.Writer, "%s = %s\n", p.Key, p.Value)
		formatter.VerboseLog("  revision %d", p.Revision)
	}
	return nil
}

func runPropsDelete(opts *PropsOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := openExisting(opts.database())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteProperty(cmd.Context(), key); err != nil {
		return WrapExitError(ExitCommandError, "failed to delete property", err)
	}

	if formatter.JSON() {
		return formatter.Success(map[string]string{"deleted": key})
	}
	fmt.Fprintf(formatter.Writer, "deleted %s\n", key)
	return nil
}

// openExisting opens a database that must already exist. store.Open
// would silently create an empty one.
func openExisting(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set VECGRID_DB")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: database not found: %s", ErrCodeNotFound, path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open database", ErrCodeDatabase), err)
	}
	return st, nil
}
