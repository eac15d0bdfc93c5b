package mudsmoke

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

// This test is in the mudsmoke package so it can inspect private members of
// the driver the harness would build.
func TestNewHarnessFromArgs(t *testing.T) {
	t.Parallel()
	h, err := NewHarnessFromArgs([]string{
		"-d",
		"-H", "mud.example.com",
		"-p", "4000",
		"--charset", "latin1",
		"--strip-ansi",
		"--strict",
		"--scenario-pause", "0s",
		"--drain-delay", "20ms",
		"-s", "player",
		"--player-user", "Ranger",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	d, err := NewDriver(h.DriverOptions...)
	if err != nil {
		t.Fatal(err)
	}
	if d.log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("want log level %v, got %v", logrus.DebugLevel, d.log.GetLevel())
	}
	wantAddress := "mud.example.com:4000"
	if d.Address() != wantAddress {
		t.Fatalf("want server address %q, got %q", wantAddress, d.Address())
	}
	if !d.stripANSI {
		t.Fatal("want ANSI stripping enabled")
	}
	if d.drainDelay != 20*time.Millisecond {
		t.Fatalf("want drain delay 20ms, got %v", d.drainDelay)
	}
	if !h.Strict || h.Pause != 0 {
		t.Fatalf("want strict with no pause, got strict %v and pause %v", h.Strict, h.Pause)
	}
	if len(h.Scenarios) != 1 || h.Scenarios[0].Name != "player" {
		t.Fatalf("want only the player scenario, got %+v", h.Scenarios)
	}
	if h.Scenarios[0].User != "Ranger" {
		t.Fatalf("want player user Ranger, got %q", h.Scenarios[0].User)
	}
}

func TestNewHarnessFromArgsRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	tests := map[string][]string{
		"port out of range":  {"-p", "0"},
		"empty host":         {"-H", ""},
		"unknown charset":    {"--charset", "ebcdic"},
		"negative pause":     {"--scenario-pause", "-1s"},
		"zero call timeout":  {"--call-timeout", "0s"},
		"unknown scenario":   {"-s", "wizard"},
		"missing file":       {"-f", filepath.Join(t.TempDir(), "absent.yaml")},
		"unknown flag":       {"--colour"},
		"malformed duration": {"--pacing-delay", "soon"},
	}
	for name, args := range tests {
		args := args
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewHarnessFromArgs(args)
			if err == nil {
				t.Fatalf("did not receive an expected error for %v", args)
			}
		})
	}
}

func TestNewHarnessFromArgsLogsAtInfoByDefault(t *testing.T) {
	t.Parallel()
	h, err := NewHarnessFromArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDriver(h.DriverOptions...)
	if err != nil {
		t.Fatal(err)
	}
	if d.log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("want log level %v, got %v", logrus.InfoLevel, d.log.GetLevel())
	}
}

// Not parallel, as it sets an environment variable.
func TestNewHarnessFromArgsRejectsInvalidEnvVar(t *testing.T) {
	t.Setenv("MUDSMOKE_PORT", "abc")
	_, err := NewHarnessFromArgs(nil)
	if err == nil {
		t.Fatal("did not receive an expected error")
	}
	if !strings.Contains(err.Error(), "MUDSMOKE_PORT") {
		t.Fatalf("want the error to name MUDSMOKE_PORT, got %v", err)
	}

	// A flag on the command line wins over the environment.
	_, err = NewHarnessFromArgs([]string{"-p", "4000"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestNewHarnessFromArgsReadsScenarioFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	content := "scenarios:\n  - name: builder\n    user: Bob\n    password: secret1\n    steps:\n      - command: look\n"
	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHarnessFromArgs([]string{"-f", path})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Scenarios) != 1 || h.Scenarios[0].User != "Bob" {
		t.Fatalf("want the builder scenario from %s, got %+v", path, h.Scenarios)
	}
}

func TestNewHarnessFromArgsOpensTranscript(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.log")
	h, err := NewHarnessFromArgs([]string{"--transcript", path})
	if err != nil {
		t.Fatal(err)
	}
	if h.transcript == nil {
		t.Fatal("want the transcript file to be open")
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}

func TestNewHarnessFromArgsVersionAndHelp(t *testing.T) {
	t.Parallel()
	_, err := NewHarnessFromArgs([]string{"--version"})
	if err == nil || !strings.HasPrefix(err.Error(), "version ") {
		t.Fatalf("want a version message, got %v", err)
	}
	_, err = NewHarnessFromArgs([]string{"--help"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("want %v, got %v", flag.ErrHelp, err)
	}
}

func TestAskPasswordsRequiresTerminal(t *testing.T) {
	t.Parallel()
	in, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	scenarios := []Scenario{
		{Name: "admin", User: "TestAdmin", Password: "admin123"},
		{Name: "player", User: "TestPlayer"},
	}
	err = askPasswords(scenarios, in, os.Stderr)
	if err == nil || !strings.Contains(err.Error(), "TestPlayer") {
		t.Fatalf("want an error naming TestPlayer, got %v", err)
	}

	scenarios[1].Password = "player123"
	err = askPasswords(scenarios, in, os.Stderr)
	if err != nil {
		t.Fatalf("no password was missing, got %v", err)
	}
}

func ExampleNewHarnessFromArgs() {
	h, err := NewHarnessFromArgs([]string{"--host", "127.0.0.1", "--port", "4000"})
	if err != nil {
		panic(err)
	}
	d, err := NewDriver(h.DriverOptions...)
	if err != nil {
		panic(err)
	}
	for _, s := range h.Scenarios {
		fmt.Printf("%s logs in to %s as %s\n", s.Name, d.Address(), s.User)
	}
	// Output:
	// admin logs in to 127.0.0.1:4000 as TestAdmin
	// player logs in to 127.0.0.1:4000 as TestPlayer
}
