package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/edt-api/internal/models"
)

func newQuotaCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect competency quotas",
	}

	cmd.AddCommand(
		newQuotaReportCmd(app),
		newQuotaFlushCmd(app),
	)

	return cmd
}

func newQuotaReportCmd(app *App) *cobra.Command {
	var tradeID int64

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print quota progress for every competency of a trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			trade, statuses, err := app.Quotas.TradeReport(cmd.Context(), tradeID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), StyleBold.Render(trade.Title))
			fmt.Fprint(cmd.OutOrStdout(), formatQuotaReport(statuses))
			return nil
		},
	}

	cmd.Flags().Int64Var(&tradeID, "metier", 0, "Trade ID")
	_ = cmd.MarkFlagRequired("metier")

	return cmd
}

func newQuotaFlushCmd(app *App) *cobra.Command {
	var (
		ids []int64
		all bool
	)

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Drop cached quota snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(ids) > 0) {
				return fmt.Errorf("pass either --competences or --all")
			}
			n := len(ids)
			if all {
				var err error
				if n, err = app.Quotas.FlushAll(cmd.Context()); err != nil {
					return err
				}
			} else if err := app.Quotas.Flush(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s flushed %d competency snapshot(s)\n", StyleGreen.Render("✔"), n)
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "competences", nil, "Competency IDs")
	cmd.Flags().BoolVar(&all, "all", false, "Drop every snapshot")

	return cmd
}

func formatQuotaReport(statuses []models.QuotaStatus) string {
	if len(statuses) == 0 {
		return StyleDim.Render("no competencies") + "\n"
	}
	headers := []string{"ID", "CODE", "COMPETENCY", "QUOTA", "SCHEDULED", "REMAINING", "SESSIONS", "PROGRESS"}
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, []string{
			strconv.FormatInt(st.CompetencyID, 10),
			st.Code,
			st.Name,
			formatHours(st.HourlyQuota),
			formatHours(st.HoursScheduled),
			formatHours(st.HoursRemaining),
			strconv.Itoa(st.SessionCount),
			RenderProgress(st.PercentUsed/100, 12),
		})
	}
	return RenderTable(headers, rows)
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}
