package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/outfitlab/matchflow/internal/model"
)

// Reporter renders pipeline results to a terminal.
type Reporter struct {
	writer      io.Writer
	progressBar *progressbar.ProgressBar
}

// NewReporter creates a reporter. writer defaults to stdout.
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

// StartProgress begins a progress bar over total targets.
func (r *Reporter) StartProgress(total int) {
	r.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Refining matches...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(r.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// Advance moves the progress bar forward by one target.
func (r *Reporter) Advance() {
	if r.progressBar == nil {
		return
	}
	if err := r.progressBar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// RenderMatches prints one finalized result as a styled summary.
func (r *Reporter) RenderMatches(targetID string, matches model.FinalizedMatches) {
	var b strings.Builder

	b.WriteString(renderBucket(SparkIcon+" High", SuccessStyle, matches.HighFinal, matches))
	b.WriteString(renderBucket("~ Near", WarningStyle, matches.NearFinal, matches))
	b.WriteString(renderBucket(HiddenIcon+" Hidden", SubtleStyle, matches.Hidden, matches))

	stats := matches.Stats
	b.WriteString(SubtleStyle.Render(fmt.Sprintf(
		"trust: %d demoted, %d hidden · safety: %d demoted, %d hidden",
		stats.TrustDemoted, stats.TrustHidden, stats.SafetyDemoted, stats.SafetyHidden)))
	if stats.SafetyObserveOnly {
		b.WriteString(SubtleStyle.Render(" (safety observe-only)"))
	}

	if _, err := fmt.Fprintln(r.writer, RenderBox("Matches for "+targetID, b.String())); err != nil {
		slog.Warn("Failed to write match summary", "error", err)
	}
}

func renderBucket(label string, style interface{ Render(...string) string }, pairs []model.MatchPair, matches model.FinalizedMatches) string {
	var b strings.Builder
	b.WriteString(style.Render(fmt.Sprintf("%s (%d)", label, len(pairs))))
	b.WriteString("\n")
	for _, p := range pairs {
		line := fmt.Sprintf("  %-20s %-12s score %.3f", p.Item.ID, p.Item.Category, p.Evaluation.RawScore)
		if action := matches.ActionByID[p.Item.ID]; action != model.ActionKeep {
			line += SubtleStyle.Render("  [" + string(action) + "]")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
