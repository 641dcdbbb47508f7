package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCommands = map[string]int{
	"up":      0,
	"down":    0,
	"status":  0,
	"version": 0,
	"redo":    0,
	"reset":   0,
	"up-to":   1,
	"down-to": 1,
}

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|status|version|redo|reset|up-to|down-to> [version]",
		Short: "Apply or inspect database migrations",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			want, ok := migrateCommands[command]
			if !ok {
				return fmt.Errorf("unknown migrate command %q", command)
			}
			if len(args)-1 != want {
				return fmt.Errorf("migrate %s expects %d argument(s)", command, want)
			}
			if err := app.Migrate(cmd.Context(), command, args[1:]...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s migrate %s\n", StyleGreen.Render("✔"), command)
			return nil
		},
	}
}
