package mudsmoke

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const ruleWidth = 70

// Reporter narrates a run to a writer: scenario headers, each command and
// its checks, and a closing summary. A nil *Reporter is silent.
type Reporter struct {
	out     io.Writer
	verbose bool
	title   cases.Caser
	pass    lipgloss.Style
	fail    lipgloss.Style
	heading lipgloss.Style
	dim     lipgloss.Style
}

// NewReporter returns a Reporter writing to w. Colours are used only when w
// is a terminal. With verbose set, every command and its full output are
// shown, not only the checks.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		out:     w,
		verbose: verbose,
		title:   cases.Title(language.English),
		pass:    r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		heading: r.NewStyle().Bold(true),
		dim:     r.NewStyle().Faint(true),
	}
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) banner(rule, text string) {
	line := strings.Repeat(rule, ruleWidth)
	r.printf("\n%s\n%s\n%s\n", line, r.heading.Render(" "+text), line)
}

// ScenarioStarted prints the header for s.
func (r *Reporter) ScenarioStarted(s *Scenario) {
	if r == nil {
		return
	}
	r.banner("=", fmt.Sprintf("%s SCENARIO: logging in as %s", strings.ToUpper(s.Name), s.User))
}

// LoggedIn reports how the login sequence ended.
func (r *Reporter) LoggedIn(s *Scenario, res *LoginResult, err error) {
	if r == nil {
		return
	}
	if r.verbose && res != nil {
		r.printf("%s\n", r.dim.Render(strings.TrimRight(res.Transcript, "\r\n")))
	}
	if err != nil {
		r.printf("%s\n", r.fail.Render(fmt.Sprintf("✗ Login as %s failed: %v", s.User, err)))
		return
	}
	r.printf("%s\n", r.pass.Render(fmt.Sprintf("✓ Logged in as %s (%s account)", s.User, res.Branch)))
}

// Section prints a sub-heading when a scenario moves to a new group of
// steps.
func (r *Reporter) Section(name string) {
	if r == nil || name == "" {
		return
	}
	r.banner("-", "Testing "+name)
}

// StepStarted echoes the command about to be sent, in verbose mode.
func (r *Reporter) StepStarted(s Step) {
	if r == nil || !r.verbose {
		return
	}
	r.printf("\n> %s\n", s.Command)
}

// StepFinished prints the step's output in verbose mode, and its check.
func (r *Reporter) StepFinished(o Outcome) {
	if r == nil {
		return
	}
	if r.verbose && o.Output != "" {
		r.printf("%s\n", r.dim.Render(strings.TrimRight(o.Output, "\r\n")))
	}
	if o.Err != nil {
		r.printf("  ! %s: %v\n", o.Step.Command, o.Err)
	}
	if !o.Checked {
		return
	}
	if o.Passed {
		r.printf("  %s\n", r.pass.Render(fmt.Sprintf("✓ %s: %s", o.Step.Command, o.Description)))
	} else {
		r.printf("  %s\n", r.fail.Render(fmt.Sprintf("✗ %s: expected %s", o.Step.Command, o.Description)))
	}
}

// ConnectionFailed reports a scenario that could not reach the server.
func (r *Reporter) ConnectionFailed(s *Scenario, err error) {
	if r == nil {
		return
	}
	r.printf("%s\n", r.fail.Render(fmt.Sprintf("❌ Failed to connect to server for %s: %v", s.Name, err)))
}

// Summary prints per-scenario totals and the overall verdict, and returns
// the exit status for the run.
func (r *Reporter) Summary(results []*ScenarioResult, strict bool) int {
	status, issues := ExitStatus(results, strict)
	if r == nil {
		return status
	}
	strict = gatesAll(results, strict)
	informational := 0
	r.banner("=", "TEST SUMMARY")
	for _, res := range results {
		passed, checked := res.Passed()
		note := ""
		if !res.Scenario.Gate && !strict {
			note = r.dim.Render(" (informational)")
			informational += res.issues()
		}
		r.printf("\n%s Tests: %d/%d passed%s\n", r.title.String(res.Scenario.Name), passed, checked, note)
		if res.LoginErr != nil {
			r.printf("  %s\n", r.fail.Render(fmt.Sprintf("✗ login: %v", res.LoginErr)))
		}
		for _, o := range res.Outcomes {
			if o.Checked && !o.Passed {
				r.printf("  %s\n", r.fail.Render("✗ "+o.Step.Command))
			}
		}
		if res.Interrupted {
			r.printf("  %s\n", r.fail.Render("✗ interrupted before all steps ran"))
		}
	}
	switch {
	case status != 0:
		r.printf("\n%s\n", r.fail.Render(fmt.Sprintf("⚠️  SOME TESTS FAILED - %d issues found", issues)))
	case informational > 0:
		r.printf("\n%s\n", r.pass.Render(fmt.Sprintf("✅ ALL GATING TESTS PASSED - %d informational failures", informational)))
	default:
		r.printf("\n%s\n", r.pass.Render("✅ ALL TESTS PASSED"))
	}
	return status
}

// ExitStatus returns 0 when every gating scenario is OK, and 1 otherwise,
// along with the number of problems found in gating scenarios. Every
// scenario gates when strict is set, or when none of them is marked Gate.
func ExitStatus(results []*ScenarioResult, strict bool) (status, issues int) {
	strict = gatesAll(results, strict)
	for _, res := range results {
		if !res.Scenario.Gate && !strict {
			continue
		}
		issues += res.issues()
	}
	if issues > 0 {
		return 1, issues
	}
	return 0, 0
}

// gatesAll reports whether every result gates the run.
func gatesAll(results []*ScenarioResult, strict bool) bool {
	if strict {
		return true
	}
	for _, res := range results {
		if res.Scenario.Gate {
			return false
		}
	}
	return true
}

// issues counts a failed login, an interruption and each failed outcome.
func (r *ScenarioResult) issues() int {
	n := 0
	if r.LoginErr != nil {
		n++
	}
	if r.Interrupted {
		n++
	}
	for _, o := range r.Outcomes {
		if !o.Passed {
			n++
		}
	}
	return n
}
