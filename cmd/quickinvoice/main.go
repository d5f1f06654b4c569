package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/smallbiznis/quickinvoice/internal/assist"
	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/currency"
	"github.com/smallbiznis/quickinvoice/internal/draft"
	"github.com/smallbiznis/quickinvoice/internal/entitlement"
	"github.com/smallbiznis/quickinvoice/internal/invoice"
	"github.com/smallbiznis/quickinvoice/internal/invoice/render"
	"github.com/smallbiznis/quickinvoice/internal/observability"
	"github.com/smallbiznis/quickinvoice/internal/server"
	"github.com/smallbiznis/quickinvoice/internal/storage"
	"github.com/smallbiznis/quickinvoice/internal/usage"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Set with -ldflags "-X main.version=... -X main.buildTime=...".
var (
	version   = "dev"
	buildTime = "unknown"
)

const appName = "quickinvoice"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Invoice builder with draft autosave and history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd(), totalsCmd(), exportCmd(), historyCmd(), versionCmd())
	return cmd
}

// coreModules are shared by the server and the one-shot commands.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		clock.Module,
		storage.Module,
		entitlement.Module,
		invoice.Module,
		draft.Module,
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				usage.Module,
				assist.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

// withController starts the core modules without the HTTP server, runs fn
// and stops the app again so that pending writes are flushed.
func withController(ctx context.Context, fn func(ctx context.Context, c *draft.Controller) error) error {
	var ctl *draft.Controller
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Populate(&ctl),
	)

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx, ctl)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func totalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Print the totals of the stored draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(ctx context.Context, c *draft.Controller) error {
				v := c.State(ctx)
				code := v.Invoice.Currency

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintf(w, "Invoice\t%s\t\n", v.Invoice.Meta.Number)
				fmt.Fprintf(w, "Subtotal\t%s\t\n", currency.Format(v.Totals.Subtotal, code))
				fmt.Fprintf(w, "Discount\t%s\t\n", currency.Format(-v.Totals.DiscountAmount, code))
				fmt.Fprintf(w, "Tax\t%s\t\n", currency.Format(v.Totals.TaxAmount, code))
				fmt.Fprintf(w, "Total\t%s\t\n", currency.Format(v.Totals.Total, code))
				return w.Flush()
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		out    string
		format string
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the stored draft to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(ctx context.Context, c *draft.Controller) error {
				art, err := c.Export(ctx, draft.ExportOptions{Format: format, SaveToHistory: save})
				if err != nil {
					return err
				}
				path := out
				if path == "" {
					path = art.Filename
				}
				if err := os.WriteFile(path, art.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				abs, _ := filepath.Abs(path)
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", abs, len(art.Data))
				if art.Snapshot != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "saved to history as %s\n", art.Snapshot.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (defaults to the invoice file name)")
	cmd.Flags().StringVarP(&format, "format", "f", draft.FormatPDF, "Output format (pdf, html)")
	cmd.Flags().BoolVar(&save, "save", false, "Also save the invoice to history")
	return cmd
}

func historyCmd() *cobra.Command {
	var xlsx string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(ctx context.Context, c *draft.Controller) error {
				entries := c.History(ctx)
				if xlsx != "" {
					data, err := render.HistoryWorkbook(entries)
					if err != nil {
						return err
					}
					if err := os.WriteFile(xlsx, data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", xlsx, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %s\n", len(entries), xlsx)
					return nil
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no saved invoices")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSAVED\tNUMBER\tCLIENT\tTOTAL")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						e.ID,
						e.SavedAt.Local().Format("2006-01-02 15:04"),
						e.InvoiceNumber,
						e.ClientName,
						currency.Format(e.Total, e.Currency),
					)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Write the history to an Excel workbook instead")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, version, buildTime)
		},
	}
}
