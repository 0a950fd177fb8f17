package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	"notion_sync/internal/domain"
)

// WriteReport prints the end-of-run summary. It is printed even when some
// documents failed.
func WriteReport(w io.Writer, r *domain.SyncReport) error {
	var sb strings.Builder

	title := "Sync report"
	if r.DryRun {
		title += " (dry run)"
	}
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")

	if !r.PreviousSync.IsZero() {
		fmt.Fprintf(&sb, "previous sync:  %s\n", r.PreviousSync.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "fetched:        %d\n", r.Fetched)
	fmt.Fprintf(&sb, "created:        %d\n", r.Created)
	fmt.Fprintf(&sb, "updated:        %d\n", r.Updated)
	fmt.Fprintf(&sb, "skipped:        %d\n", r.Skipped)
	if r.Excluded > 0 {
		fmt.Fprintf(&sb, "excluded:       %d\n", r.Excluded)
	}
	fmt.Fprintf(&sb, "failed:         %d\n", r.Failed)
	fmt.Fprintf(&sb, "images:         %d downloaded, %d reused, %d failed\n",
		r.Media.Downloaded, r.Media.Reused, r.Media.Failed)
	if r.Published > 0 || r.PublishErrors > 0 {
		fmt.Fprintf(&sb, "events:         %d published, %d failed\n", r.Published, r.PublishErrors)
	}
	fmt.Fprintf(&sb, "duration:       %s\n", r.Duration.Round(time.Millisecond))

	if len(r.Failures) > 0 {
		sb.WriteString("\nFailures:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&sb, "  - %s: %s\n", f.Title, f.Error)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
