package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/edufarm/edufarm/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errNoDB    = errors.New("migrate needs the postgres database engine")
	roleByName = map[string][]string{
		"student": user.StudentRoles,
		"teacher": user.TeacherRoles,
		"admin":   user.AdminRoles,
	}
)

type commandLine struct {
	db       *sql.DB // nil with the in-memory engine
	usrSvc   user.Service
	validate *validator.Validate
	out      io.Writer
}

// run executes `args` (program name included).
func (cli *commandLine) run(args []string) error {
	cmd := cli.rootCommand()
	if len(args) > 0 {
		args = args[1:]
	}
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "EduFarm operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	if cli.out != nil {
		root.SetOut(cli.out)
		root.SetErr(cli.out)
	}
	root.AddCommand(cli.addUserCommand(), cli.resetPasswordCommand(), cli.migrateCommand())
	return root
}

func (cli *commandLine) addUserCommand() *cobra.Command {
	var name, uname, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "create a user, or reactivate an existing one with a new password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles, ok := roleByName[role]
			if (uname == "" && email == "") || !ok {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.addUser(name, uname, email, pwd, roles)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name (defaults to the username)")
	cmd.Flags().StringVar(&uname, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&role, "role", "admin", "student | teacher | admin")
	return cmd
}

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "reset user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(uname, pwd)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username or email. The password will be prompted next.")
	return cmd
}

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "run a goose command (up, down, status, ...) on the embedded migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
