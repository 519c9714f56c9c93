package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/turtacn/embedscope/internal/domain/pointcloud"
)

// driftColor grades a drift ratio: above 0.5 red, above 0.2 yellow.
func driftColor(v float64) func(format string, a ...interface{}) string {
	switch {
	case v > 0.5:
		return color.RedString
	case v > 0.2:
		return color.YellowString
	default:
		return color.GreenString
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

// renderClusters writes views as a table.  Reference values are omitted
// when the view hides them.
func renderClusters(w io.Writer, views []pointcloud.ClusterView, noColor bool) {
	prev := color.NoColor
	color.NoColor = prev || noColor
	defer func() { color.NoColor = prev }()

	hideRef := len(views) > 0 && views[0].HideReference
	metricName := "METRIC"
	if len(views) > 0 && views[0].MetricName != "" {
		metricName = views[0].MetricName
	}
	header := []string{"#", "Cluster", "Size", "Drift", metricName}
	if !hideRef {
		header = append(header, "Reference")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, v := range views {
		drift := formatValue(v.DriftRatio)
		if v.DriftRatio != nil {
			drift = driftColor(*v.DriftRatio)("%s", drift)
		}
		row := []string{
			strconv.Itoa(i + 1),
			v.ID,
			strconv.Itoa(v.NumPoints),
			drift,
			formatValue(v.PrimaryMetricValue),
		}
		if !hideRef {
			row = append(row, formatValue(v.ReferenceMetricValue))
		}
		table.Append(row)
	}
	table.Render()
	fmt.Fprintf(w, "\nTotal clusters: %d\n", len(views))
}
