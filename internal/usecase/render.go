package usecase

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// WriteText renders report as plain text. Member rows and their top
// repositories are included when withMembers is set.
func WriteText(w io.Writer, report *domain.SyncReport, withMembers bool) error {
	bw := bufio.NewWriter(w)
	t := report.Totals

	fmt.Fprintln(bw, "===== Sync Report =====")
	fmt.Fprintf(bw, "Run: %s\n", report.RunID)
	fmt.Fprintf(bw, "Range: %s .. %s\n", report.Range.Since, report.Range.Until)
	fmt.Fprintf(bw, "Started: %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(bw, "Finished: %s (duration %dms)\n", report.FinishedAt.Format(time.RFC3339), report.DurationMs)
	fmt.Fprintf(bw, "Repos processed: %d, skipped: %d\n", t.ProcessedRepos, t.SkippedRepos)
	fmt.Fprintf(bw, "Totals -> commits:%d prsOpened:%d prsMerged:%d reviews:%d issues:%d additions:%d deletions:%d\n",
		t.Commits, t.PRsOpened, t.PRsMerged, t.ReviewsTotal, t.Issues, t.Additions, t.Deletions)

	fmt.Fprintln(bw, "--- Per Repo ---")
	for _, r := range report.PerRepo {
		fmt.Fprintf(bw, "%s -> commits:%d prsOpened:%d prsMerged:%d reviews:%d (A:%d/C:%d/Cm:%d) issues:%d additions:%d deletions:%d",
			r.FullName, r.Commits, r.PRsOpened, r.PRsMerged,
			r.ReviewsTotal, r.ReviewsApproved, r.ReviewsChanges, r.ReviewsCommented,
			r.Issues, r.Additions, r.Deletions)
		if r.Skipped != "" {
			fmt.Fprintf(bw, " SKIPPED: %s", r.Skipped)
		}
		fmt.Fprintln(bw)
		if len(r.Errors) > 0 {
			fmt.Fprintf(bw, "  errors: %s\n", strings.Join(r.Errors, " | "))
		}
	}

	if withMembers {
		fmt.Fprintln(bw, "--- Per Member ---")
		writeMembers(bw, report.PerMember)
	}
	return bw.Flush()
}

// WriteMembers renders member rows on their own, as the report command does.
func WriteMembers(w io.Writer, rows []domain.MemberBreakdownRow) error {
	bw := bufio.NewWriter(w)
	writeMembers(bw, rows)
	return bw.Flush()
}

func writeMembers(w io.Writer, rows []domain.MemberBreakdownRow) {
	for _, m := range rows {
		fmt.Fprintf(w, "%s -> commits:%d prsOpened:%d prsMerged:%d reviews:%d (A:%d/C:%d/Cm:%d) issues:%d additions:%d deletions:%d activeDays:%d reposTouched:%d score:%s\n",
			m.Login, m.Commits, m.PRsOpened, m.PRsMerged,
			m.ReviewsTotal, m.ReviewsApproved, m.ReviewsChanges, m.ReviewsCommented,
			m.Issues, m.Additions, m.Deletions, m.ActiveDays, m.ReposTouched,
			strconv.FormatFloat(m.Score, 'f', -1, 64))
		for _, tr := range m.TopRepos {
			fmt.Fprintf(w, "   • %s -> total:%d commits:%d prsOpened:%d prsMerged:%d reviews:%d issues:%d\n",
				tr.Repo, tr.Total, tr.Commits, tr.PRsOpened, tr.PRsMerged, tr.Reviews, tr.Issues)
		}
	}
}
