package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Render writes the report as a terminal table.
func Render(w io.Writer, r Report) error {
	if _, err := fmt.Fprintf(w, "내 순위는? %02d명 중 %d등 !\n\n", r.Stats.TotalUsers, r.Rank); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\t시간복잡도\t코드스타일\t메모리사용량\t실행시간\t테스트")
	for _, row := range r.Rows {
		style := strings.Join(row.CodeStyle, "; ")
		if style == "" {
			style = "-"
		}
		mem, elapsed, pass := NotSubmitted, NotSubmitted, NotSubmitted
		if row.Submitted && row.Executed {
			mem = humanize.IBytes(uint64(row.MemoryKB * 1024))
			elapsed = fmt.Sprintf("%.6f seconds", row.ExecutionTime)
			pass = "실패"
			if row.TestPass {
				pass = "통과"
			}
		}
		fmt.Fprintf(tw, "#%02d\t%s\t%s\t%s\t%s\t%s\n", row.QuestionID, row.TimeComplexity, style, mem, elapsed, pass)
	}
	return tw.Flush()
}
