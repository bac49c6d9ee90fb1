package authctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// ErrUsage is returned for an unknown command or wrong argument count.
var ErrUsage = errors.New("usage error")

const usage = `usage: authctl <command> [args]

commands:
  create-user <username> [role]   create an account (role: user|admin, default user)
  passwd <username>               set a new password and end all sessions
  set-role <username> <role>      change the role; issued access tokens stop working
  disable <username>              block logins and end all sessions
  enable <username>               allow logins again
  force-logout <username>         end every session of the user
  sessions <username>             list live sessions
  list                            list accounts
`

type App struct {
	users *services.UserService
	in    *bufio.Reader
	out   io.Writer
}

func NewApp(users *services.UserService, in io.Reader, out io.Writer) *App {
	return &App{users: users, in: bufio.NewReader(in), out: out}
}

// Usage writes the command summary.
func (a *App) Usage() {
	fmt.Fprint(a.out, usage)
}

type command struct {
	minArgs, maxArgs int
	run              func(ctx context.Context, args []string) error
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"create-user":  {1, 2, a.createUser},
		"passwd":       {1, 1, a.passwd},
		"set-role":     {2, 2, a.setRole},
		"disable":      {1, 1, func(ctx context.Context, args []string) error { return a.setActive(ctx, args[0], false) }},
		"enable":       {1, 1, func(ctx context.Context, args []string) error { return a.setActive(ctx, args[0], true) }},
		"force-logout": {1, 1, a.forceLogout},
		"sessions":     {1, 1, a.sessions},
		"list":         {0, 0, a.list},
	}
}

// Run executes one command. args[0] is the command name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, ok := a.commands()[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	rest := args[1:]
	if len(rest) < cmd.minArgs || len(rest) > cmd.maxArgs {
		return fmt.Errorf("%w: wrong number of arguments for %s", ErrUsage, args[0])
	}
	return cmd.run(ctx, rest)
}

func (a *App) createUser(ctx context.Context, args []string) error {
	role := models.RoleUser
	if len(args) == 2 {
		r, err := models.ParseRole(args[1])
		if err != nil {
			return err
		}
		role = r
	}

	password, err := getNewPassword(a.in, a.out)
	if err != nil {
		return err
	}

	u, err := a.users.CreateUser(ctx, args[0], password, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s (%s) id=%s\n", u.UserName, u.Role, u.ID)
	return nil
}

func (a *App) passwd(ctx context.Context, args []string) error {
	u, err := a.users.GetByUsername(ctx, args[0])
	if err != nil {
		return err
	}

	password, err := getNewPassword(a.in, a.out)
	if err != nil {
		return err
	}

	if err := a.users.ChangePassword(ctx, u.ID, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "password changed for %s; all sessions ended\n", u.UserName)
	return nil
}

func (a *App) setRole(ctx context.Context, args []string) error {
	role, err := models.ParseRole(args[1])
	if err != nil {
		return err
	}
	u, err := a.users.GetByUsername(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.users.ChangeRole(ctx, u.ID, role); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", u.UserName, role)
	return nil
}

func (a *App) setActive(ctx context.Context, username string, active bool) error {
	u, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := a.users.SetActive(ctx, u.ID, active); err != nil {
		return err
	}
	state := "enabled"
	if !active {
		state = "disabled"
	}
	fmt.Fprintf(a.out, "%s %s\n", u.UserName, state)
	return nil
}

func (a *App) forceLogout(ctx context.Context, args []string) error {
	u, err := a.users.GetByUsername(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.users.ForceLogout(ctx, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "all sessions of %s ended\n", u.UserName)
	return nil
}

func (a *App) sessions(ctx context.Context, args []string) error {
	u, err := a.users.GetByUsername(ctx, args[0])
	if err != nil {
		return err
	}
	list, err := a.users.Sessions(ctx, u.ID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tEXPIRES\tIP\tUSER AGENT")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID,
			s.CreatedAt.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339), s.IPAddress, s.UserAgent)
	}
	return tw.Flush()
}

func (a *App) list(ctx context.Context, _ []string) error {
	list, err := a.users.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tACTIVE\tLAST LOGIN")
	for _, u := range list {
		last := "-"
		if u.LastLoginAt != nil {
			last = u.LastLoginAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.UserName, u.Role, u.Active, last)
	}
	return tw.Flush()
}
