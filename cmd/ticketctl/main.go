// Command ticketctl runs batch ticket jobs and operator administration
// against the same configuration as the API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/bootstrap"
	"github.com/yigit/campuspass/internal/pkg/logger"
	"github.com/yigit/campuspass/internal/seed"
)

const usage = `Usage: ticketctl <command> [flags]

Commands:
  migrate          apply pending database migrations
  generate-all     issue a ticket for every paid student without one
  send             email every valid, unsent ticket of every paid student
  create-operator  add a back-office account

Run "ticketctl <command> --help" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(ctx, args)
	case "generate-all":
		err = runGenerateAll(ctx, args)
	case "send":
		err = runSend(ctx, args)
	case "create-operator":
		err = runCreateOperator(ctx, args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error().Err(err).Str("command", cmd).Msg("Command failed")
		os.Exit(1)
	}
}

// env is everything a command needs, released by close
type env struct {
	deps *bootstrap.Dependencies
}

func (e *env) close() {
	if err := e.deps.Close(); err != nil {
		e.deps.Logger.Warn().Err(err).Msg("Error releasing resources")
	}
}

func setup(ctx context.Context, opts *bootstrap.Options) (*env, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(opts, "ticketctl")
	if err != nil {
		return nil, err
	}
	database, err := bootstrap.SetupDatabase(ctx, cfg, lgr)
	if err != nil {
		return nil, err
	}
	locker, redisClient, err := bootstrap.SetupRunLocker(ctx, cfg, database, lgr)
	if err != nil {
		database.Close()
		return nil, err
	}
	deps, err := bootstrap.BuildDependencies(ctx, cfg, database, locker, lgr)
	if err != nil {
		database.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	deps.Redis = redisClient
	return &env{deps: deps}, nil
}

func newFlagSet(name string) (*pflag.FlagSet, *bootstrap.Options) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	return fs, bootstrap.BindFlags(fs)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runMigrate(ctx context.Context, args []string) error {
	fs, opts := newFlagSet("migrate")
	_ = fs.Parse(args)

	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(opts, "ticketctl")
	if err != nil {
		return err
	}
	database, err := bootstrap.SetupDatabase(ctx, cfg, lgr)
	if err != nil {
		return err
	}
	database.Close()
	return nil
}

func runGenerateAll(ctx context.Context, args []string) error {
	fs, opts := newFlagSet("generate-all")
	eventName := fs.String("event", "", "event name (defaults to the configured event)")
	ticketType := fs.String("type", "", "ticket type: gratuit, payant or VIP (defaults to the configured type)")
	_ = fs.Parse(args)

	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	report, err := e.deps.IssuanceService.IssueForAllPaidWithoutTicket(ctx, *eventName, models.TicketType(*ticketType))
	if err != nil {
		return err
	}
	e.deps.Logger.Info().
		Int("total", report.Total).
		Int("succeeded", report.SuccessCount).
		Int("failed", report.FailedCount).
		Msg("Bulk issuance finished")
	return printJSON(report)
}

func runSend(ctx context.Context, args []string) error {
	fs, opts := newFlagSet("send")
	_ = fs.Parse(args)

	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	report, err := e.deps.DeliveryService.SendAll(ctx)
	if err != nil {
		// a stopped run still reports what it sent
		if report != nil {
			_ = printJSON(report)
		}
		return err
	}
	e.deps.Logger.Info().
		Int("processed", report.Summary.TotalProcessed).
		Int("sent", report.Summary.SuccessfulSends).
		Int("failed", report.Summary.FailedSends).
		Int("successRate", report.Summary.SuccessRate).
		Msg("Delivery run finished")
	return printJSON(report)
}

func runCreateOperator(ctx context.Context, args []string) error {
	fs, opts := newFlagSet("create-operator")
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "initial password (defaults to $OPERATOR_PASSWORD)")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	role := fs.String("role", string(models.RoleStaff), "ADMIN or STAFF")
	_ = fs.Parse(args)

	if *password == "" {
		*password = os.Getenv("OPERATOR_PASSWORD")
	}

	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	op, err := seed.CreateOperator(ctx, e.deps.Repos.OperatorRepository, seed.NewOperator{
		Email:     *email,
		Password:  *password,
		FirstName: *firstName,
		LastName:  *lastName,
		Role:      models.RoleType(*role),
	})
	if err != nil {
		return err
	}
	e.deps.Logger.Info().Int64("operatorID", op.ID).Str("email", op.Email).Str("role", string(op.RoleType)).Msg("Operator created")
	return nil
}
