package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/aws"
	"github.com/ppiankov/alertspectre/internal/report"
	"github.com/spf13/cobra"
)

var servicesFlags struct {
	format string
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List scannable services and alert types",
	RunE:  runServices,
}

func init() {
	servicesCmd.Flags().StringVar(&servicesFlags.format, "format", report.FormatText, "Output format: text or json")
}

func runServices(cmd *cobra.Command, _ []string) error {
	catalog := aws.Catalog()
	out := cmd.OutOrStdout()

	switch servicesFlags.format {
	case report.FormatJSON:
		types := make([]map[string]string, 0, len(alert.AllTypes))
		for _, t := range alert.AllTypes {
			types = append(types, map[string]string{"type": string(t), "label": alert.DefaultLabels[t]})
		}
		return report.WriteJSON(out, map[string]any{
			"services":       catalog,
			"total_services": len(catalog),
			"alert_types":    types,
		})
	case report.FormatText:
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVICE\tSCOPE\tCHECKS\tDESCRIPTION")
		for _, s := range catalog {
			scope := "regional"
			if s.Global {
				scope = "global"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, scope, strings.Join(s.Checks, ","), s.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out, "\nAlert types:")
		for _, t := range alert.AllTypes {
			fmt.Fprintf(out, "  %-18s %s\n", t, alert.DefaultLabels[t])
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use text or json)", servicesFlags.format)
	}
}
