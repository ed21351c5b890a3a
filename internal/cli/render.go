package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/pricing"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	costStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	alertStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

var statsHeaders = []string{"Input", "Output", "Reasoning", "Cache R", "Cache W", "Msgs", "Reqs", "Cost"}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.Off}},
		})))
	table.Header(headers)

	alignments := make([]tw.Align, len(headers))
	for i := range alignments {
		alignments[i] = tw.AlignRight
	}
	alignments[0] = tw.AlignLeft
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = alignments
	})
	return table
}

func statsColumns(s model.CostedStats) []string {
	return []string{
		FormatTokens(s.Input),
		FormatTokens(s.Output),
		FormatTokens(s.Reasoning),
		FormatTokens(s.CacheRead),
		FormatTokens(s.CacheWrite),
		FormatNumber(s.Messages),
		FormatNumber(s.Requests),
		FormatCost(s.Cost),
	}
}

// RenderStats writes a single-row summary table for one scope.
func RenderStats(w io.Writer, scope string, stats model.CostedStats) {
	fmt.Fprintln(w, headerStyle.Render("Usage: "+scope))
	table := newTable(w, append([]string{"Scope"}, statsHeaders...))
	table.Append(append([]string{scope}, statsColumns(stats)...))
	table.Render()
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("total tokens: %s", FormatNumber(stats.TotalTokens()))))
}

// RenderByProvider writes one row per provider, sorted by name.
func RenderByProvider(w io.Writer, scope string, grouped map[string]model.CostedStats) {
	fmt.Fprintln(w, headerStyle.Render("Usage by provider: "+scope))
	table := newTable(w, append([]string{"Provider"}, statsHeaders...))
	for _, provider := range sortedKeys(grouped) {
		table.Append(append([]string{provider}, statsColumns(grouped[provider])...))
	}
	table.Render()
}

// RenderByModel writes one row per provider/model pair.
func RenderByModel(w io.Writer, scope string, grouped map[string]map[string]model.CostedStats) {
	fmt.Fprintln(w, headerStyle.Render("Usage by model: "+scope))
	table := newTable(w, append([]string{"Provider", "Model"}, statsHeaders...))
	for _, provider := range sortedKeys(grouped) {
		for _, modelID := range sortedKeys(grouped[provider]) {
			table.Append(append([]string{provider, modelID}, statsColumns(grouped[provider][modelID])...))
		}
	}
	table.Render()
}

// RenderStatus writes the agent status block.
func RenderStatus(w io.Writer, lastScan, messageCount int64) {
	fmt.Fprintln(w, headerStyle.Render("Agent status"))
	fmt.Fprintf(w, "  running:   yes\n")
	if lastScan > 0 {
		ago := time.Since(time.Unix(lastScan, 0))
		fmt.Fprintf(w, "  last scan: %s (%s ago)\n",
			time.Unix(lastScan, 0).Format("2006-01-02 15:04:05"),
			FormatDuration(int64(ago.Seconds())))
	} else {
		fmt.Fprintf(w, "  last scan: %s\n", mutedStyle.Render("never"))
	}
	fmt.Fprintf(w, "  messages:  %s\n", FormatNumber(messageCount))
}

// RenderThresholds writes the daily/monthly limit block, coloring
// exceeded limits.
func RenderThresholds(w io.Writer, r pricing.ThresholdReport) {
	fmt.Fprintln(w, headerStyle.Render("Thresholds"))
	fmt.Fprintf(w, "  today:      %s\n", thresholdLine(FormatTokens(r.DailyTokens), FormatTokens(r.DailyTokenLimit), r.DailyTokensExceeded))
	fmt.Fprintf(w, "  today cost: %s\n", thresholdLine(FormatCost(r.DailyCost), FormatCost(r.DailyCostLimit), r.DailyCostExceeded))
	fmt.Fprintf(w, "  month:      %s\n", thresholdLine(FormatTokens(r.MonthlyTokens), FormatTokens(r.MonthlyTokenLimit), r.MonthlyTokensExceeded))
	fmt.Fprintf(w, "  month cost: %s\n", thresholdLine(FormatCost(r.MonthlyCost), FormatCost(r.MonthlyCostLimit), r.MonthlyCostExceeded))
}

func thresholdLine(used, limit string, exceeded bool) string {
	line := fmt.Sprintf("%s / %s", used, limit)
	if exceeded {
		return alertStyle.Render(line + " (exceeded)")
	}
	return line
}

// RenderCostLine renders a standalone cost figure.
func RenderCostLine(cost float64) string {
	return costStyle.Render(FormatCost(cost))
}

// RenderWarning renders a non-fatal notice.
func RenderWarning(msg string) string {
	return warnStyle.Render("warning: " + msg)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Divider renders a muted horizontal rule.
func Divider(width int) string {
	return mutedStyle.Render(strings.Repeat("─", width))
}
