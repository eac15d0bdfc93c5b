package mudsmoke

import (
	"strings"
	"time"
)

// LoginState is where a login sequence currently stands.
type LoginState int

const (
	AwaitingName LoginState = iota
	AwaitingPasswordPrompt
	NewAccountFlow
	ExistingAccountFlow
	InWorld
)

func (s LoginState) String() string {
	switch s {
	case AwaitingName:
		return "awaiting-name"
	case AwaitingPasswordPrompt:
		return "awaiting-password-prompt"
	case NewAccountFlow:
		return "new-account"
	case ExistingAccountFlow:
		return "existing-account"
	case InWorld:
		return "in-world"
	default:
		return "unknown"
	}
}

// AccountBranch records which way the server steered the login.
type AccountBranch int

const (
	AccountUnknown AccountBranch = iota
	AccountNew
	AccountExisting
)

func (b AccountBranch) String() string {
	switch b {
	case AccountNew:
		return "new"
	case AccountExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// LoginPrompts are the server prompts the login sequence waits for. A nil
// field falls back to the matching DefaultLoginPrompts entry.
type LoginPrompts struct {
	Name             *Pattern
	NewPassword      *Pattern
	ExistingPassword *Pattern
	ConfirmPassword  *Pattern
	EnteredNew       *Pattern // after a new account is created
	EnteredExisting  *Pattern // after an existing account logs in
}

// DefaultLoginPrompts returns the prompts of the stock MUD server.
func DefaultLoginPrompts() LoginPrompts {
	return LoginPrompts{
		Name:             LiteralPattern("Enter your name:"),
		NewPassword:      LiteralPattern("Choose a password:"),
		ExistingPassword: LiteralPattern("Enter your password:"),
		ConfirmPassword:  LiteralPattern("Confirm password:"),
		EnteredNew:       MustCompilePattern("(materialize|room)"),
		EnteredExisting:  MustCompilePattern("materialize"),
	}
}

func (p LoginPrompts) withDefaults() LoginPrompts {
	def := DefaultLoginPrompts()
	fill := func(dst **Pattern, fallback *Pattern) {
		if *dst == nil {
			*dst = fallback
		}
	}
	fill(&p.Name, def.Name)
	fill(&p.NewPassword, def.NewPassword)
	fill(&p.ExistingPassword, def.ExistingPassword)
	fill(&p.ConfirmPassword, def.ConfirmPassword)
	fill(&p.EnteredNew, def.EnteredNew)
	fill(&p.EnteredExisting, def.EnteredExisting)
	return p
}

// LoginConfig describes one character logging in.
type LoginConfig struct {
	Name         string
	Password     string
	Prompts      LoginPrompts
	EnterTimeout time.Duration // wait for the entered-world marker, 0 uses DefaultEnterTimeout
}

// LoginResult is what a login attempt observed, whether or not it reached
// the world.
type LoginResult struct {
	State      LoginState
	Branch     AccountBranch
	Transcript string // all server output seen during login
}

// loginMachine carries one login attempt through its states.
type loginMachine struct {
	d       *Driver
	cfg     LoginConfig
	result  LoginResult
	lastOut string
	out     strings.Builder
}

type loginTransition func(*loginMachine) (LoginState, bool)

// loginTransitions maps each non-terminal state to the exchange that leaves
// it. A transition reports false when the prompt it waits for never came.
var loginTransitions = map[LoginState]loginTransition{
	AwaitingName: func(m *loginMachine) (LoginState, bool) {
		if !m.await(m.cfg.Prompts.Name, 0) {
			return AwaitingName, false
		}
		m.send(m.cfg.Name, false)
		return AwaitingPasswordPrompt, true
	},
	AwaitingPasswordPrompt: func(m *loginMachine) (LoginState, bool) {
		p := m.cfg.Prompts
		if !m.await(AnyPattern(p.NewPassword, p.ExistingPassword), 0) {
			return AwaitingPasswordPrompt, false
		}
		// Whichever prompt shows up first in the output decides the branch.
		newAt := p.NewPassword.index(m.lastOut)
		existingAt := p.ExistingPassword.index(m.lastOut)
		if newAt >= 0 && (existingAt < 0 || newAt < existingAt) {
			m.result.Branch = AccountNew
			return NewAccountFlow, true
		}
		m.result.Branch = AccountExisting
		return ExistingAccountFlow, true
	},
	NewAccountFlow: func(m *loginMachine) (LoginState, bool) {
		m.send(m.cfg.Password, true)
		if !m.await(m.cfg.Prompts.ConfirmPassword, 0) {
			return NewAccountFlow, false
		}
		m.send(m.cfg.Password, true)
		if !m.await(m.cfg.Prompts.EnteredNew, m.cfg.EnterTimeout) {
			return NewAccountFlow, false
		}
		return InWorld, true
	},
	ExistingAccountFlow: func(m *loginMachine) (LoginState, bool) {
		m.send(m.cfg.Password, true)
		if !m.await(m.cfg.Prompts.EnteredExisting, m.cfg.EnterTimeout) {
			return ExistingAccountFlow, false
		}
		return InWorld, true
	},
}

// Login walks d through the server's login sequence as cfg.Name, creating
// the account when the server asks for a new password. It returns a
// *LoginError when a prompt fails to arrive, along with a result recording
// how far the sequence got.
func Login(d *Driver, cfg LoginConfig) (*LoginResult, error) {
	if !d.Connected() {
		return &LoginResult{State: AwaitingName}, ErrNotConnected
	}
	cfg.Prompts = cfg.Prompts.withDefaults()
	if cfg.EnterTimeout <= 0 {
		cfg.EnterTimeout = DefaultEnterTimeout
	}
	m := &loginMachine{d: d, cfg: cfg}
	state := AwaitingName
	for state != InWorld {
		next, ok := loginTransitions[state](m)
		if !ok {
			m.result.State = state
			m.result.Transcript = m.out.String()
			d.log.Debugf("login as %s stalled in state %s", cfg.Name, state)
			return &m.result, &LoginError{State: state, Output: m.lastOut}
		}
		d.log.Debugf("login as %s: %s -> %s", cfg.Name, state, next)
		state = next
	}
	// Late notices, such as a tool attaching to the character, trail the
	// entry message.
	time.Sleep(d.settleDelay)
	extra, err := d.Drain()
	m.out.WriteString(extra)
	if err != nil {
		d.log.Debugf("draining after login: %v", err)
	}
	m.result.State = InWorld
	m.result.Transcript = m.out.String()
	d.log.Infof("logged in as %s (%s account)", cfg.Name, m.result.Branch)
	return &m.result, nil
}

// await waits for p and reports whether it was seen.
func (m *loginMachine) await(p *Pattern, timeout time.Duration) bool {
	out, err := m.d.ReceiveUntil(p, timeout)
	m.lastOut = out
	m.out.WriteString(out)
	if err != nil {
		m.d.log.Warnf("waiting for %s: %v", p, err)
		return false
	}
	return p.MatchString(out)
}

// send logs and otherwise ignores write failures; the next await notices
// the server never answered.
func (m *loginMachine) send(text string, secret bool) {
	var err error
	if secret {
		err = m.d.SendSecret(text)
	} else {
		err = m.d.SendLine(text)
	}
	if err != nil {
		m.d.log.Warnf("during login: %v", err)
	}
}
