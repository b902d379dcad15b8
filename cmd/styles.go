package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/maastricht-university/alignment-qc/measure"
	"github.com/maastricht-university/alignment-qc/quality"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#1F6FEB")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
	errorColor   = lipgloss.Color("#A40000")
)

var verdictColors = map[quality.Verdict]lipgloss.Color{
	quality.VerdictExcellent: lipgloss.Color("#2EA043"),
	quality.VerdictGood:      lipgloss.Color("#7EE787"),
	quality.VerdictFair:      lipgloss.Color("#D29922"),
	quality.VerdictPoor:      lipgloss.Color("#F85149"),
	quality.VerdictNoData:    mutedColor,
}

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(22)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

func verdictStyle(v quality.Verdict) lipgloss.Style {
	c, ok := verdictColors[v]
	if !ok {
		c = mutedColor
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

func printKV(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render(key), ValueStyle.Render(fmt.Sprint(value)))
}

func printError(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

func printSummary(w io.Writer, s measure.Summary) {
	fmt.Fprintln(w, TitleStyle.Render("Measurements"))
	printKV(w, "Recordings:", s.TotalFiles)
	printKV(w, "Phonemes:", s.TotalPhonemes)
	printKV(w, "Words:", s.TotalWords)
	printKV(w, "Vowels analysed:", s.VowelsAnalyzed)
	printKV(w, "Mean phoneme duration:", fmt.Sprintf("%.1f ms", s.PhonemeStats.Mean*1000))
	if s.VowelFormants != nil {
		printKV(w, "Mean F1 / F2:", fmt.Sprintf("%.0f / %.0f Hz", s.VowelFormants.F1Mean, s.VowelFormants.F2Mean))
	}
	fmt.Fprintln(w)
}

func printReport(w io.Writer, r *quality.Report) {
	fmt.Fprintln(w, TitleStyle.Render("Alignment quality"))
	printKV(w, "Units:", fmt.Sprintf("%d (%d phonemes, %d words)", r.TotalUnits, r.TotalPhonemes, r.TotalWords))
	printKV(w, "Flagged units:", r.FlaggedUnits)
	printKV(w, "Issues:", r.TotalIssues)
	for _, c := range quality.Categories {
		printKV(w, "  "+string(c)+":", r.Categories[c])
	}
	printKV(w, "Error rate:", fmt.Sprintf("%.2f%%", r.ErrorRate*100))
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("Verdict:"), verdictStyle(r.Verdict).Render(string(r.Verdict)))
	if len(r.Skipped) > 0 {
		printKV(w, "Skipped recordings:", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(s.Recording+" ("+s.Stage+")"), s.Reason)
		}
	}
	fmt.Fprintln(w)
}

func printComparison(w io.Writer, first, second string, c quality.Comparison) {
	fmt.Fprintln(w, TitleStyle.Render("Comparison"))
	printKV(w, "First:", fmt.Sprintf("%s  %.2f%% %s", first, c.First.ErrorRate*100, c.First.Verdict))
	printKV(w, "Second:", fmt.Sprintf("%s  %.2f%% %s", second, c.Second.ErrorRate*100, c.Second.Verdict))
	printKV(w, "Error rate delta:", fmt.Sprintf("%+.2f pp", c.ErrorRateDelta*100))
	printKV(w, "Flagged delta:", fmt.Sprintf("%+d", c.FlaggedDelta))
	cats := make([]string, 0, len(c.CategoryDelta))
	for k := range c.CategoryDelta {
		cats = append(cats, string(k))
	}
	sort.Strings(cats)
	for _, k := range cats {
		printKV(w, "  "+k+":", fmt.Sprintf("%+d", c.CategoryDelta[quality.Category(k)]))
	}
	printKV(w, "Outcome:", c.Outcome)
	fmt.Fprintln(w)
}
