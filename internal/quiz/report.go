package quiz

import (
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// reportData is everything rendered into one score report.
type reportData struct {
	Sequence  int
	Username  string
	Nickname  string
	Started   time.Time
	Finished  time.Time
	Score     Score
	Questions []model.Question
	Answers   map[int64]model.Answer
	Progress  []model.VideoProgress
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func mark(ok bool) string {
	if ok {
		return "✔"
	}
	return "✘"
}

func renderReport(d reportData) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Score Report #%d\n\n", d.Sequence)
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| User | %s |\n", cell(d.Username))
	if d.Nickname != "" {
		fmt.Fprintf(&b, "| Nickname | %s |\n", cell(d.Nickname))
	}
	started := "-"
	duration := "-"
	if !d.Started.IsZero() {
		started = d.Started.Format(timeLayout)
		duration = d.Finished.Sub(d.Started).Round(time.Second).String()
	}
	fmt.Fprintf(&b, "| Started | %s |\n", started)
	fmt.Fprintf(&b, "| Finished | %s |\n", d.Finished.Format(timeLayout))
	fmt.Fprintf(&b, "| Duration | %s |\n", duration)
	fmt.Fprintf(&b, "| Score | %d / %d (%.1f%%) |\n", d.Score.Correct, d.Score.Total, d.Score.Ratio*100)
	fmt.Fprintf(&b, "| Grade | %s |\n\n", d.Score.Grade)

	b.WriteString("## Overview\n\n")
	if len(d.Questions) == 0 {
		b.WriteString("No questions in the bank.\n\n")
	} else {
		b.WriteString("| # | Your answer | Correct answer | Result |\n|---|---|---|---|\n")
		for i, q := range d.Questions {
			a, answered := d.Answers[q.ID]
			selected := "-"
			if answered {
				selected = string(a.Selected)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, selected, q.Correct, mark(answered && a.Selected == q.Correct))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Questions\n\n")
	for i, q := range d.Questions {
		a, answered := d.Answers[q.ID]
		ok := answered && a.Selected == q.Correct
		fmt.Fprintf(&b, "### %d. %s %s\n\n", i+1, strings.TrimSpace(q.Content), mark(ok))
		for _, o := range model.Options {
			fmt.Fprintf(&b, "- %s. %s\n", o, q.OptionText(o))
		}
		b.WriteString("\n")
		if answered {
			fmt.Fprintf(&b, "Your answer: **%s** (%s)\n\n", a.Selected, q.OptionText(a.Selected))
		} else {
			b.WriteString("Your answer: not answered\n\n")
		}
		fmt.Fprintf(&b, "Correct answer: **%s** (%s)\n\n", q.Correct, q.OptionText(q.Correct))
	}

	b.WriteString("## Video Progress\n\n")
	if len(d.Progress) == 0 {
		b.WriteString("No videos watched.\n")
	} else {
		b.WriteString("| Video | Progress |\n|---|---|\n")
		for _, p := range d.Progress {
			fmt.Fprintf(&b, "| %s | %s |\n", cell(p.Title), cell(p.Marker))
		}
	}
	return []byte(b.String())
}
