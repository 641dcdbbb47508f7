package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/noah-isme/edt-api/internal/models"
)

// Migrator runs a goose command against the embedded migrations.
type Migrator func(ctx context.Context, command string, args ...string) error

// QuotaAdmin exposes the quota operations available to operators.
type QuotaAdmin interface {
	TradeReport(ctx context.Context, tradeID int64) (*models.Trade, []models.QuotaStatus, error)
	Flush(ctx context.Context, ids []int64) error
	FlushAll(ctx context.Context) (int, error)
}

// App holds the dependencies used by CLI commands.
type App struct {
	Migrate Migrator
	Quotas  QuotaAdmin
}

// NewRootCmd creates the top-level "edt-admin" command.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "edt-admin",
		Short:         "Operator tooling for the timetable API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(app),
		newQuotaCmd(app),
	)

	return root
}
