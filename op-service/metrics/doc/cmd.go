// Package doc lists the metrics of a service, for the operator documentation.
package doc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/ethbridge/op-service/metrics"
)

type Documentor interface {
	Document() []metrics.DocumentedMetric
}

func NewSubcommands(m Documentor) cli.Commands {
	return cli.Commands{
		{
			Name:  "metrics",
			Usage: "Dumps a list of supported metrics to stdout",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Value: "markdown",
					Usage: "Output format (json|markdown)",
				},
			},
			Action: func(ctx *cli.Context) error {
				supported := m.Document()
				switch format := ctx.String("format"); format {
				case "json":
					enc := json.NewEncoder(ctx.App.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(supported)
				case "markdown":
					table := tablewriter.NewWriter(ctx.App.Writer)
					table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
					table.SetCenterSeparator("|")
					table.SetAutoWrapText(false)
					table.SetHeader([]string{"Metric", "Type", "Labels", "Description"})
					for _, metric := range supported {
						table.Append([]string{metric.Name, metric.Type, strings.Join(metric.Labels, ","), metric.Help})
					}
					table.Render()
					return nil
				default:
					return fmt.Errorf("invalid format: %s", format)
				}
			},
		},
	}
}
