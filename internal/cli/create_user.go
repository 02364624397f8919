package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
)

// CreateUserCommand bootstraps an account, typically the first administrator.
type CreateUserCommand struct {
	DatabasePath string
	Username     string
	Email        string
	Password     string
	Role         string
	IssueToken   bool

	Out    io.Writer
	config *config.Config
}

func NewCreateUserCommand(cfg *config.Config) *CreateUserCommand {
	return &CreateUserCommand{
		Out:    os.Stdout,
		config: cfg,
	}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", cmd.config.Database.Path, "Path to the database file")
	fs.StringVar(&cmd.Username, "username", "", "Username (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Password, "password", os.Getenv("LENDING_USER_PASSWORD"), "Password, defaults to $LENDING_USER_PASSWORD")
	fs.StringVar(&cmd.Role, "role", string(entities.UserRoleReader), "Role: admin or reader")
	fs.BoolVar(&cmd.IssueToken, "token", false, "Also issue an API token and print it")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create a user account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s create-user -username admin -email admin@example.com -role admin -token\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Username == "" || cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("username and email are required")
	}
	if cmd.Password == "" {
		return fmt.Errorf("password is required (-password or LENDING_USER_PASSWORD)")
	}
	if !entities.ValidUserRole(entities.UserRole(cmd.Role)) {
		return fmt.Errorf("invalid role %q", cmd.Role)
	}
	return nil
}

func (cmd *CreateUserCommand) Run(ctx context.Context) error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(users.NewRepository(db.DB), cmd.config.Auth)
	user, err := service.CreateUser(ctx, cmd.Username, cmd.Email, cmd.Password, entities.UserRole(cmd.Role))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(cmd.Out, "Created %s %q with id %d\n", user.Role, user.Username, user.ID)

	if !cmd.IssueToken {
		return nil
	}
	token, expiresAt, err := service.IssueToken(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Fprintf(cmd.Out, "API token: %s\n", token)
	if expiresAt != nil {
		fmt.Fprintf(cmd.Out, "Expires:   %s\n", expiresAt.Format("2006-01-02 15:04 MST"))
	}
	return nil
}
