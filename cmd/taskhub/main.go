// Command taskhub is the terminal client for the taskhub server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/client/api"
	"github.com/fastygo/taskhub/client/tasklist"
	"github.com/fastygo/taskhub/client/tui"
	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/pkg/logger"
)

const serverEnv = "TASKHUB_SERVER"

type app struct {
	server   string
	logLevel string

	logger  *zap.Logger
	closeFn func() error
	tokens  api.TokenFile
	in      io.Reader
	out     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{in: os.Stdin, out: os.Stdout}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taskhub",
		Short:         "Manage your tasks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = api.DefaultServer
	}
	cmd.PersistentFlags().StringVar(&a.server, "server", server, "API server URL (env "+serverEnv+")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level written to the client log file")

	cmd.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.tasksCmd(),
		a.addCmd(),
		a.editCmd(),
		a.chatCmd(),
	)
	return cmd
}

// setup opens the token file and a file-backed logger; writing logs to the terminal would
// corrupt the full-screen view.
func (a *app) setup() error {
	tokens, err := api.DefaultTokenFile()
	if err != nil {
		return err
	}
	a.tokens = tokens

	logPath := filepath.Join(filepath.Dir(tokens.Path), "taskhub.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return err
	}
	log, closeFn, err := logger.NewFile(logger.Config{Level: a.logLevel, Encoding: "json"}, logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.logger = log
	a.closeFn = closeFn
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}

func (a *app) client(authenticated bool) (*api.Client, error) {
	opts := []api.Option{api.WithLogger(a.logger)}
	if authenticated {
		token, err := a.tokens.Load()
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithToken(token))
	}
	return api.New(a.server, opts...)
}

func (a *app) registerCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(false)
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = a.prompt("Password: "); err != nil {
					return err
				}
			}
			user, err := c.Register(cmd.Context(), domain.Registration{Name: name, Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %s <%s>. Run `taskhub login` to sign in.\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(false)
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = a.prompt("Password: "); err != nil {
					return err
				}
			}
			cred, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.tokens.Save(cred.Token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Fprintf(a.out, "Logged in. Session valid until %s.\n", cred.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(true)
			if errors.Is(err, api.ErrNoToken) {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil && !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
				return err
			}
			if err := a.tokens.Remove(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(true)
			if err != nil {
				return err
			}
			user, err := c.Profile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
}

func (a *app) tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Open the interactive task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(true)
			if err != nil {
				return err
			}
			controller := tasklist.NewController(c, a.logger)
			return tui.Run(cmd.Context(), controller)
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var description, priority, due string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(true)
			if err != nil {
				return err
			}
			input := domain.NewTask{
				Title:       strings.Join(args, " "),
				Description: description,
				Priority:    priority,
			}
			if due != "" {
				if input.DueDate, err = domain.ParseDate(due); err != nil {
					return err
				}
			}
			task, err := c.CreateTask(cmd.Context(), input)
			if err != nil {
				return err
			}
			status := tasklist.Classify(*task, domain.DateOf(time.Now()))
			fmt.Fprintf(a.out, "Created %q (%s) %s\n", task.Title, task.Priority, status.Label())
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var title, description, priority, due string
	var completed bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task; only the flags given are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := editPatch(cmd, title, description, priority, due, completed)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return errors.New("nothing to change, pass at least one flag")
			}
			c, err := a.client(true)
			if err != nil {
				return err
			}
			task, err := c.UpdateTask(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			status := tasklist.Classify(*task, domain.DateOf(time.Now()))
			fmt.Fprintf(a.out, "Updated %q (%s) %s\n", task.Title, task.Priority, status.Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringVar(&due, "due", "", `Due date, YYYY-MM-DD; --due "" clears it`)
	cmd.Flags().BoolVar(&completed, "completed", false, "Mark completed (--completed=false reopens)")
	return cmd
}

// editPatch turns the flags the user actually set into a partial update.
func editPatch(cmd *cobra.Command, title, description, priority, due string, completed bool) (domain.TaskPatch, error) {
	var patch domain.TaskPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		patch.Title = &title
	}
	if flags.Changed("description") {
		patch.Description = &description
	}
	if flags.Changed("priority") {
		p, err := domain.ParsePriority(priority)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.Priority = &p
	}
	if flags.Changed("due") {
		if strings.TrimSpace(due) == "" {
			patch.DueDate = domain.ClearDate()
		} else {
			d, err := domain.ParseDate(strings.TrimSpace(due))
			if err != nil {
				return domain.TaskPatch{}, err
			}
			patch.DueDate = domain.SetDate(d)
		}
	}
	if flags.Changed("completed") {
		patch.Completed = &completed
	}
	return patch, patch.Validate()
}

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Ask the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(false)
			if err != nil {
				return err
			}
			reply, err := c.Chat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, reply)
			return nil
		},
	}
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
