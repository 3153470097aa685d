package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"schoolgenius-seeder/internal/app"
	"schoolgenius-seeder/internal/application/ledger"
	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/domain/entity"

	"github.com/charmbracelet/lipgloss"
)

// maxFailureLines 批次报告中每个任务展示的失败明细条数
const maxFailureLines = 5

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// table 简单的左对齐文本表格，宽度按可见字符计算
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cols ...string) {
	t.rows = append(t.rows, cols)
}

func (t *table) String() string {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}

	pad := func(cols []string) string {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if i == len(cols)-1 {
				cells[i] = c
				continue
			}
			cells[i] = c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
		}
		return strings.Join(cells, "  ")
	}

	lines := make([]string, 0, len(t.rows)+1)
	lines = append(lines, headerStyle.Render(pad(t.header)))
	for _, r := range t.rows {
		lines = append(lines, pad(r))
	}
	return strings.Join(lines, "\n")
}

// jobPlan 任务计划的展示视图
type jobPlan struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	TargetTable      string  `json:"targetTable"`
	Provider         string  `json:"provider"`
	Items            int     `json:"items"`
	EstimatedCostUSD float64 `json:"estimatedCostUSD"`
}

type planSummary struct {
	Jobs             []jobPlan `json:"jobs"`
	TotalItems       int       `json:"totalItems"`
	EstimatedCostUSD float64   `json:"estimatedCostUSD"`
}

func planView(jobs []*seeding.JobDescriptor, defaultProvider string) planSummary {
	s := planSummary{Jobs: make([]jobPlan, 0, len(jobs))}
	for _, j := range jobs {
		provider := j.Provider
		if provider == "" {
			provider = defaultProvider
		}
		s.Jobs = append(s.Jobs, jobPlan{
			Name:             j.Name,
			Description:      j.Description,
			TargetTable:      j.TargetTable,
			Provider:         provider,
			Items:            j.EstimatedItems,
			EstimatedCostUSD: j.EstimatedCostUSD(),
		})
		s.TotalItems += j.EstimatedItems
		s.EstimatedCostUSD += j.EstimatedCostUSD()
	}
	return s
}

func renderPlan(w io.Writer, jobs []*seeding.JobDescriptor, defaultProvider string) {
	plan := planView(jobs, defaultProvider)
	t := newTable("JOB", "TABLE", "PROVIDER", "ITEMS", "EST. COST")
	for _, j := range plan.Jobs {
		t.add(j.Name, j.TargetTable, j.Provider, strconv.Itoa(j.Items), formatUSD(j.EstimatedCostUSD))
	}
	summary := fmt.Sprintf("%d jobs, %d items, estimated %s", len(plan.Jobs), plan.TotalItems, formatUSD(plan.EstimatedCostUSD))

	fmt.Fprintln(w, titleStyle.Render("Seeding plan"))
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, mutedStyle.Render(summary))
	fmt.Fprintln(w)
}

func renderStatus(w io.Writer, st *entity.ProgressState, jobs []*seeding.JobDescriptor) {
	lines := []string{
		titleStyle.Render("Batch progress"),
		fmt.Sprintf("Started:   %s", formatTime(st.StartTime)),
		fmt.Sprintf("Updated:   %s", formatTime(st.UpdatedAt)),
		fmt.Sprintf("Items:     %d / %d", st.ItemsGeneratedSoFar, st.TotalItemsTarget),
		fmt.Sprintf("Cost:      %s / %s", formatUSD(st.CostSpentSoFar), formatUSD(st.TotalCostTarget)),
	}
	if st.CurrentJob != "" {
		lines = append(lines, fmt.Sprintf("In flight: %s", warnStyle.Render(st.CurrentJob+" (resumes on next run)")))
	}
	fmt.Fprintln(w, panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

	if len(st.CompletedJobs) > 0 {
		t := newTable("COMPLETED", "GENERATED", "SKIPPED", "FAILED", "COST", "MINUTES", "AT")
		for _, c := range st.CompletedJobs {
			t.add(
				c.Name,
				strconv.Itoa(c.ItemsGenerated),
				strconv.Itoa(c.ItemsSkipped),
				strconv.Itoa(c.ItemsFailed),
				formatUSD(c.CostUSD),
				strconv.FormatFloat(c.DurationMinutes, 'f', 1, 64),
				formatTime(c.CompletedAt),
			)
		}
		fmt.Fprintln(w, t.String())
	}
	if len(st.FailedJobs) > 0 {
		t := newTable("FAILED", "AT", "ERROR")
		for _, f := range st.FailedJobs {
			t.add(f.Name, formatTime(f.FailedAt), errorStyle.Render(f.Error))
		}
		fmt.Fprintln(w, t.String())
	}

	var pending []string
	for _, j := range jobs {
		if !st.IsCompleted(j.Name) {
			pending = append(pending, j.Name)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintln(w, okStyle.Render("All jobs completed."))
		return
	}
	fmt.Fprintln(w, mutedStyle.Render("Pending: "+strings.Join(pending, ", ")))
}

// statusView status --json 的输出
type statusView struct {
	Found    bool                  `json:"found"`
	Progress *entity.ProgressState `json:"progress,omitempty"`
	Records  []app.TableCount      `json:"records"`
	Backends []app.BackendHealth   `json:"backends"`
}

func renderStorage(w io.Writer, counts []app.TableCount, health []app.BackendHealth) {
	t := newTable("TABLE", "RECORDS")
	for _, c := range counts {
		t.add(c.Table, strconv.FormatInt(c.Records, 10))
	}
	fmt.Fprintln(w, t.String())

	for _, h := range health {
		if h.Healthy {
			fmt.Fprintf(w, "%s %s\n", okStyle.Render("up  "), h.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", errorStyle.Render("down"), h.Name, mutedStyle.Render(h.Error))
	}
}

func renderCostReport(w io.Writer, r *ledger.CostReport) {
	fmt.Fprintln(w, titleStyle.Render("Cost report"))
	for _, p := range []ledger.PeriodSummary{r.Today, r.Month, r.AllTime} {
		head := fmt.Sprintf("%s (%s): %s over %d requests", p.Label, p.Period, formatUSD(p.TotalUSD), p.Requests)
		fmt.Fprintln(w, headerStyle.Render(head))
		if len(p.Providers) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("  no requests"))
			continue
		}
		t := newTable("  PROVIDER", "REQUESTS", "COST", "TOKENS IN/OUT", "CHARS IN/OUT")
		for _, s := range p.Providers {
			t.add(
				"  "+s.Provider,
				strconv.FormatInt(s.Requests, 10),
				formatUSD(s.CostUSD),
				fmt.Sprintf("%d/%d", s.InputTokens, s.OutputTokens),
				fmt.Sprintf("%d/%d", s.InputChars, s.OutputChars),
			)
		}
		fmt.Fprintln(w, t.String())
	}

	proj := r.Projection
	remaining := okStyle.Render(formatUSD(proj.RemainingUSD))
	if proj.OverBudget {
		remaining = errorStyle.Render(formatUSD(proj.RemainingUSD) + " over budget")
	}
	fmt.Fprintln(w, panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("Monthly projection"),
		fmt.Sprintf("Active days:    %d", proj.ActiveDays),
		fmt.Sprintf("Average daily:  %s", formatUSD(proj.AverageDailyUSD)),
		fmt.Sprintf("Projected:      %s", formatUSD(proj.ProjectedMonthlyUSD)),
		fmt.Sprintf("Budget:         %s", formatUSD(proj.MonthlyBudgetUSD)),
		fmt.Sprintf("Remaining:      %s", remaining),
	)))
}

func renderBatchReport(w io.Writer, r *seeding.BatchReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Batch "+r.RunID))

	t := newTable("JOB", "STATUS", "OK", "SKIPPED", "FAILED", "COST", "DURATION")
	for _, j := range r.Jobs {
		ok, skipped, failed, cost := "-", "-", "-", "-"
		if j.Result != nil {
			ok = strconv.Itoa(j.Result.ItemsSucceeded)
			skipped = strconv.Itoa(j.Result.ItemsSkipped)
			failed = strconv.Itoa(j.Result.ItemsFailed)
			cost = formatUSD(j.Result.CostUSD)
		}
		t.add(j.Name, statusLabel(j.Status), ok, skipped, failed, cost, j.Duration.Round(time.Second).String())
	}
	fmt.Fprintln(w, t.String())

	for _, j := range r.Jobs {
		if j.Error != "" {
			fmt.Fprintf(w, "%s %s\n", errorStyle.Render(j.Name+":"), j.Error)
		}
		if j.Result == nil {
			continue
		}
		for i, f := range j.Result.Failures {
			if i == maxFailureLines {
				fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  ... %d more failed items", j.Result.ItemsFailed-maxFailureLines)))
				break
			}
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  %s [%s] %s", f.DedupKey, f.Class, f.Message)))
		}
	}

	lines := []string{
		fmt.Sprintf("This run:  %d items, %s", r.ItemsGenerated, formatUSD(r.CostSpent)),
		fmt.Sprintf("Overall:   %d / %d items, %s / %s", r.ItemsGeneratedTotal, r.ItemsTarget, formatUSD(r.CostSpentTotal), formatUSD(r.CostTarget)),
		fmt.Sprintf("Elapsed:   %s", r.Elapsed().Round(time.Second)),
	}
	if r.Interrupted {
		lines = append(lines, warnStyle.Render("Interrupted: rerun `seeder run` to resume."))
	}
	fmt.Fprintln(w, panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

	if r.Costs != nil {
		renderCostReport(w, r.Costs)
	}
}

func statusLabel(s seeding.JobStatus) string {
	switch s {
	case seeding.StatusCompleted:
		return okStyle.Render(string(s))
	case seeding.StatusFailed:
		return errorStyle.Render(string(s))
	case seeding.StatusInterrupted:
		return warnStyle.Render(string(s))
	default:
		return mutedStyle.Render(string(s))
	}
}

func formatUSD(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 4, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05Z")
}
