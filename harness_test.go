package mudsmoke_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/ivanfetch/mudsmoke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func harnessFor(port int, out *bytes.Buffer, scenarios ...mudsmoke.Scenario) *mudsmoke.Harness {
	return &mudsmoke.Harness{
		Scenarios:     scenarios,
		DriverOptions: append(fastOptions(port), mudsmoke.WithSettleDelay(30*time.Millisecond)),
		Reporter:      mudsmoke.NewReporter(out, true),
	}
}

func TestBuiltInScenariosPassAgainstStub(t *testing.T) {
	t.Parallel()
	port := startStub(t)
	out := &bytes.Buffer{}
	h := harnessFor(port, out, mudsmoke.DefaultScenarios()...)
	status := h.Run(context.Background())
	report := ansi.Strip(out.String())
	assert.Equal(t, 0, status, report)
	assert.Contains(t, report, "ADMIN SCENARIO: logging in as TestAdmin")
	assert.Contains(t, report, "✓ Logged in as TestAdmin (new account)")
	assert.Contains(t, report, "Testing Wiztool Commands")
	assert.Contains(t, report, `✓ eval 2 + 2: output to contain "int: 4"`)
	assert.Contains(t, report, "> cd /lib")
	assert.Contains(t, report, "Admin Tests: 11/11 passed")
	assert.Contains(t, report, "Player Tests: 5/5 passed (informational)")
	assert.Contains(t, report, "ALL TESTS PASSED")
}

func TestInformationalFailuresFailOnlyWhenStrict(t *testing.T) {
	t.Parallel()
	// The first character created is an administrator, so a player
	// scenario run first is wrongly granted the wiztool.
	player := mudsmoke.PlayerScenario("Upstart", "secret1")
	visitor := mudsmoke.Scenario{
		Name:     "visitor",
		User:     "Visitor",
		Password: "secret1",
		Gate:     true,
		Quit:     "quit",
		Steps:    mudsmoke.StandardSteps(),
	}

	out := &bytes.Buffer{}
	h := harnessFor(startStub(t), out, player, visitor)
	assert.Equal(t, 0, h.Run(context.Background()))
	report := ansi.Strip(out.String())
	assert.Contains(t, report, "Player Tests: 2/5 passed (informational)")
	assert.Contains(t, report, "✗ wiz help")
	assert.Contains(t, report, "✗ cd /lib")
	assert.Contains(t, report, "✗ eval 2 + 2")
	assert.Contains(t, report, "Visitor Tests: 2/2 passed")
	assert.Contains(t, report, "ALL GATING TESTS PASSED - 3 informational failures")
	assert.NotContains(t, report, "ALL TESTS PASSED")

	out.Reset()
	h = harnessFor(startStub(t), out, player, visitor)
	h.Strict = true
	assert.Equal(t, 1, h.Run(context.Background()))
	assert.Contains(t, ansi.Strip(out.String()), "SOME TESTS FAILED - 3 issues found")
}

func TestLonePlayerScenarioGatesTheRun(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}
	h := harnessFor(startStub(t), out, mudsmoke.PlayerScenario("Upstart", "secret1"))
	assert.Equal(t, 1, h.Run(context.Background()))
	report := ansi.Strip(out.String())
	assert.Contains(t, report, "Player Tests: 2/5 passed\n")
	assert.Contains(t, report, "SOME TESTS FAILED - 3 issues found")
}

func TestScenarioFileWithoutGateFailsTheRun(t *testing.T) {
	t.Parallel()
	path := writeScenarioFile(t, `
scenarios:
  - name: builder
    user: Bob
    password: secret1
    steps:
      - command: eval 2 + 2
        expect:
          contains: "int: 5"
        timeout: 300ms
`)
	scenarios, err := mudsmoke.LoadScenarios(path)
	require.NoError(t, err)
	out := &bytes.Buffer{}
	h := harnessFor(startStub(t), out, scenarios...)
	assert.Equal(t, 1, h.Run(context.Background()))
	report := ansi.Strip(out.String())
	assert.Contains(t, report, `✗ eval 2 + 2: expected output to contain "int: 5"`)
	assert.Contains(t, report, "Builder Tests: 0/1 passed\n")
	assert.Contains(t, report, "SOME TESTS FAILED - 1 issues found")
	assert.NotContains(t, report, "ALL TESTS PASSED")
}

func TestHarnessStopsWhenServerIsUnreachable(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	out := &bytes.Buffer{}
	h := harnessFor(port, out, mudsmoke.DefaultScenarios()...)
	assert.Equal(t, 1, h.Run(context.Background()))
	report := ansi.Strip(out.String())
	assert.Contains(t, report, "Failed to connect to server for admin")
	assert.NotContains(t, report, "PLAYER SCENARIO")
}

func TestScenarioRunStopsBetweenStepsWhenCancelled(t *testing.T) {
	t.Parallel()
	port := startStub(t)
	d := connectedDriver(t, port)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := mudsmoke.AdminScenario("Canceller", "secret1")
	res := s.Run(ctx, d, nil)
	require.NoError(t, res.LoginErr)
	assert.Equal(t, mudsmoke.InWorld, res.Login.State)
	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Outcomes)
	assert.False(t, res.OK())
}

func TestHarnessReturnsFailureWhenCancelled(t *testing.T) {
	t.Parallel()
	port := startStub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &bytes.Buffer{}
	h := harnessFor(port, out, mudsmoke.DefaultScenarios()...)
	assert.Equal(t, 1, h.Run(ctx))
}
