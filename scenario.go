package mudsmoke

import (
	"context"
	"time"
)

// Step is one command sent to the server and what its output should show.
type Step struct {
	// Section groups steps under a heading in reports.
	Section string
	Command string
	// Expect checks the output. Nil means the output is only shown, not
	// checked.
	Expect Matcher
	// Wait marks the output as complete. Without it the step sleeps the
	// drain delay and reads once.
	Wait *Pattern
	// Timeout bounds the wait for Wait. 0 uses the driver's command
	// timeout; it has no effect without Wait.
	Timeout time.Duration
}

// Expect returns a step which waits for text to appear in the output of
// cmd, and passes only if it does.
func Expect(cmd, text string) Step {
	return Step{Command: cmd, Expect: Text(text), Wait: LiteralPattern(text)}
}

// Send returns an unchecked step, for commands whose output has no
// reliable marker.
func Send(cmd string) Step {
	return Step{Command: cmd}
}

// WaitPolicy returns how the driver decides this step's output is complete.
func (s Step) WaitPolicy() WaitPolicy {
	if s.Wait == nil {
		return WaitPolicy{}
	}
	return WaitFor(s.Wait, s.Timeout)
}

// Run sends the step's command on d and checks the response.
func (s Step) Run(d *Driver) Outcome {
	output, err := d.SendCommand(s.Command, s.WaitPolicy())
	passed, checked, desc := s.Expect.Check(output)
	return Outcome{
		Step:        s,
		Output:      output,
		Passed:      passed,
		Checked:     checked,
		Description: desc,
		Err:         err,
	}
}

// Outcome is the result of running one Step.
type Outcome struct {
	Step        Step
	Output      string
	Passed      bool
	Checked     bool
	Description string
	Err         error // transport trouble while running the step, if any
}

// Scenario is a character logging in and running steps in order.
type Scenario struct {
	Name     string
	User     string
	Password string
	// Gate makes failures of this scenario fail the whole run.
	Gate bool
	// Quit is sent after the last step. Empty sends nothing.
	Quit         string
	EnterTimeout time.Duration
	Steps        []Step
}

// ScenarioResult collects what happened when a Scenario ran.
type ScenarioResult struct {
	Scenario    *Scenario
	Login       *LoginResult
	LoginErr    error
	Outcomes    []Outcome
	Interrupted bool // the context was cancelled before every step ran
}

// Passed returns how many checked outcomes passed, and how many outcomes
// were checked at all.
func (r *ScenarioResult) Passed() (passed, checked int) {
	for _, o := range r.Outcomes {
		if !o.Checked {
			continue
		}
		checked++
		if o.Passed {
			passed++
		}
	}
	return passed, checked
}

// OK reports whether the login reached the world, every step ran and every
// outcome passed.
func (r *ScenarioResult) OK() bool {
	if r.LoginErr != nil || r.Interrupted {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.Passed {
			return false
		}
	}
	return true
}

// Run logs in on an already connected d and runs every step, reporting
// progress to rep, which may be nil. A failed login is reported but the
// steps still run, so their outcomes show what the server did instead. ctx
// is checked between steps.
func (s *Scenario) Run(ctx context.Context, d *Driver, rep *Reporter) *ScenarioResult {
	res := &ScenarioResult{Scenario: s}
	rep.ScenarioStarted(s)
	res.Login, res.LoginErr = Login(d, LoginConfig{
		Name:         s.User,
		Password:     s.Password,
		EnterTimeout: s.EnterTimeout,
	})
	rep.LoggedIn(s, res.Login, res.LoginErr)
	section := ""
	for _, step := range s.Steps {
		if ctx.Err() != nil {
			res.Interrupted = true
			return res
		}
		if step.Section != section {
			section = step.Section
			rep.Section(section)
		}
		rep.StepStarted(step)
		o := step.Run(d)
		res.Outcomes = append(res.Outcomes, o)
		rep.StepFinished(o)
	}
	if s.Quit != "" && ctx.Err() == nil {
		_, err := d.SendCommand(s.Quit, WaitPolicy{})
		if err != nil {
			d.log.Debugf("sending %q: %v", s.Quit, err)
		}
	}
	return res
}
