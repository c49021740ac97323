package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/BhargavCodes/ai-vault/internal/models"
	"github.com/BhargavCodes/ai-vault/internal/notify"
)

type printer struct {
	w       io.Writer
	debug   bool
	started *color.Color
	success *color.Color
	failure *color.Color
}

func newPrinter(w io.Writer, debug bool) *printer {
	return &printer{
		w:       w,
		debug:   debug,
		started: color.New(color.Faint),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
	}
}

func (p *printer) print(n notify.Notification) {
	switch n.Phase {
	case notify.PhaseStarted:
		p.started.Fprintln(p.w, n.Message)
	case notify.PhaseSuccess:
		p.success.Fprintln(p.w, n.Message)
	case notify.PhaseFailure:
		if p.debug && n.Err != nil {
			p.failure.Fprintf(p.w, "%s (%v)\n", n.Message, n.Err)
			return
		}
		p.failure.Fprintln(p.w, n.Message)
	}
}

func printFiles(w io.Writer, files []models.FileEntity) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tANALYZED\tUPLOADED")
	for _, f := range files {
		analyzed := "no"
		if f.IsAnalyzed {
			analyzed = "yes"
		}
		uploaded := ""
		if !f.UploadedAt.IsZero() {
			uploaded = f.UploadedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.Filename, f.FileType, analyzed, uploaded)
	}
	tw.Flush()
}

func printAnalysis(w io.Writer, f models.FileEntity) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, f.Filename)
	if tags := f.Tags(); tags != "" {
		fmt.Fprintf(w, "Tags:    %s\n", tags)
	}
	if summary := f.SummaryText(); summary != "" {
		fmt.Fprintf(w, "Summary: %s\n", summary)
	}
}

func printUsers(w io.Writer, users []models.UserProfile) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", u.ID, u.Name, u.Age, u.Role)
	}
	tw.Flush()
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// prompt reads one line from r after writing label to w.
func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
