package mudsmoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

var Version string = "development" // Populated at build time
var GitCommit string = "unknown"   // Populated at build time

// RunCLI processes command-line arguments, runs the selected scenarios
// against the MUD server until they finish or an interrupt arrives, then
// returns an exit status code.
func RunCLI() int {
	h, err := NewHarnessFromArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Println(err)
		return 1
	}
	defer h.Close()
	if h.enableProfiling {
		defer profile.Start(profile.GoroutineProfile, profile.ProfilePath(".")).Stop()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return h.Run(ctx)
}

// NewHarnessFromArgs returns a type *Harness after processing command-line
// arguments.
func NewHarnessFromArgs(args []string) (*Harness, error) {
	fs := flag.NewFlagSet("mudsmoke", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Printf(`mudsmoke connects to a text MUD server, logs in, runs commands, and checks the output for expected text.

Without a scenario file, an administrator scenario (which must be the first character the server ever creates) and an ordinary player scenario are run. The exit status is 0 only when every gating scenario passes.

Usage: %s [-H|--host <host>] [-p|--port <port>] [-f|--scenario-file <file.yaml>] [-s|--scenario <name>] [--strict] [-V|--verbose] [-d|--debug-logging] [-v|--version]

`,
			filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	CLIHost := fs.StringP("host", "H", DefaultHost, "The host name or IP address of the MUD server. This can also be set via the MUDSMOKE_HOST environment variable.")
	CLIPort := fs.IntP("port", "p", DefaultPort, "The TCP port of the MUD server. This can also be set via the MUDSMOKE_PORT environment variable.")
	CLIConnectTimeout := fs.Duration("connect-timeout", DefaultConnectTimeout, "How long to wait for the TCP connection to be established.")
	CLIReceiveTimeout := fs.Duration("receive-timeout", DefaultReceiveTimeout, "How long a single read from the server may wait for data.")
	CLIPacingDelay := fs.Duration("pacing-delay", DefaultPacingDelay, "How long to pause after sending each line.")
	CLISettleDelay := fs.Duration("settle-delay", DefaultSettleDelay, "How long to pause after connecting, and after entering the game, before reading.")
	CLICallTimeout := fs.Duration("call-timeout", DefaultCallTimeout, "The longest to wait for a login prompt.")
	CLICommandTimeout := fs.Duration("command-timeout", DefaultCommandTimeout, "The longest to wait for the expected text after sending a command.")
	CLIDrainDelay := fs.Duration("drain-delay", DefaultDrainDelay, "How long to pause before reading the output of a command which has no expected text.")
	CLIScenarioPause := fs.Duration("scenario-pause", DefaultScenarioPause, "How long to pause between scenarios.")
	CLICharset := fs.String("charset", CharsetUTF8, "How to decode server output, utf-8 or latin1.")
	CLIStripANSI := fs.Bool("strip-ansi", false, "Remove terminal escape sequences, such as colors, from server output before checking it.")
	CLIScenarioFile := fs.StringP("scenario-file", "f", "", "A YAML file of scenarios to run instead of the built-in ones. This can also be set via the MUDSMOKE_SCENARIO_FILE environment variable.")
	CLIScenarios := fs.StringSliceP("scenario", "s", nil, "Only run the named scenario. This can be repeated, or given a comma-separated list.")
	CLIStrict := fs.Bool("strict", false, "Fail the run when any scenario fails, not only gating scenarios.")
	CLITranscript := fs.String("transcript", "", "Write everything sent to and received from the server to this file.")
	CLIAdminUser := fs.String("admin-user", DefaultAdminUser, "The character name used by the built-in admin scenario.")
	CLIAdminPassword := fs.String("admin-password", DefaultAdminPassword, "The password used by the built-in admin scenario.")
	CLIPlayerUser := fs.String("player-user", DefaultPlayerUser, "The character name used by the built-in player scenario.")
	CLIPlayerPassword := fs.String("player-password", DefaultPlayerPassword, "The password used by the built-in player scenario.")
	CLIAskPassword := fs.Bool("ask-password", false, "Prompt on the terminal for the password of any scenario which does not have one.")
	CLIVerbose := fs.BoolP("verbose", "V", false, "Show every command sent and the full server output.")
	CLIDebugLogging := fs.BoolP("debug-logging", "d", false, "Enable debug logging. This can also be enabled by setting the MUDSMOKE_DEBUG_LOGGING environment variable to true.")
	CLIProfiling := fs.BoolP("enable-profiling", "P", false, "Enable goroutine profiling. The resulting goroutine.pprof file will be written to the current directory. This can also be enabled by setting the MUDSMOKE_ENABLE_PROFILING environment variable to true.")
	CLIVersion := fs.BoolP("version", "v", false, "Display the version and git commit.")
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	err = setCLIFlagsFromEnvVars(fs)
	if err != nil {
		return nil, err
	}
	if *CLIVersion {
		return nil, fmt.Errorf("version %s, git commit %s", Version, GitCommit)
	}

	var scenarios []Scenario
	if *CLIScenarioFile != "" {
		scenarios, err = LoadScenarios(*CLIScenarioFile)
		if err != nil {
			return nil, err
		}
	} else {
		scenarios = []Scenario{
			AdminScenario(*CLIAdminUser, *CLIAdminPassword),
			PlayerScenario(*CLIPlayerUser, *CLIPlayerPassword),
		}
	}
	scenarios, err = SelectScenarios(scenarios, *CLIScenarios)
	if err != nil {
		return nil, err
	}
	if *CLIAskPassword {
		err = askPasswords(scenarios, os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
	}
	if *CLIScenarioPause < 0 {
		return nil, fmt.Errorf("scenario pause cannot be negative, got %v", *CLIScenarioPause)
	}

	driverOptions := []DriverOption{
		WithLogger(newLogger()),
		WithAddress(*CLIHost, *CLIPort),
		WithConnectTimeout(*CLIConnectTimeout),
		WithReceiveTimeout(*CLIReceiveTimeout),
		WithPacingDelay(*CLIPacingDelay),
		WithSettleDelay(*CLISettleDelay),
		WithCallTimeout(*CLICallTimeout),
		WithCommandTimeout(*CLICommandTimeout),
		WithDrainDelay(*CLIDrainDelay),
		WithCharset(*CLICharset),
	}
	if *CLIStripANSI {
		driverOptions = append(driverOptions, WithStripANSI())
	}
	if *CLIDebugLogging {
		driverOptions = append(driverOptions, WithDebugLogging())
	}
	// Catch invalid values now, rather than when the first scenario starts.
	_, err = NewDriver(driverOptions...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		Scenarios:       scenarios,
		Pause:           *CLIScenarioPause,
		Strict:          *CLIStrict,
		Reporter:        NewReporter(os.Stdout, *CLIVerbose),
		enableProfiling: *CLIProfiling,
	}
	if *CLITranscript != "" {
		f, err := os.Create(*CLITranscript)
		if err != nil {
			return nil, fmt.Errorf("cannot create transcript: %w", err)
		}
		h.transcript = f
		driverOptions = append(driverOptions, WithTranscript(f))
	}
	h.DriverOptions = driverOptions
	return h, nil
}

// askPasswords reads a password from the terminal for each scenario which
// has none. It is an error if in is not a terminal.
func askPasswords(scenarios []Scenario, in *os.File, prompt io.Writer) error {
	fd := int(in.Fd())
	for i := range scenarios {
		s := &scenarios[i]
		if s.Password != "" {
			continue
		}
		if !term.IsTerminal(fd) {
			return fmt.Errorf("cannot ask for the password of %s, standard input is not a terminal", s.User)
		}
		fmt.Fprintf(prompt, "Password for %s (%s scenario): ", s.User, s.Name)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return fmt.Errorf("while reading the password for %s: %w", s.User, err)
		}
		s.Password = string(pw)
	}
	return nil
}

// setCLIFlagsFromEnvVars sets the values of any flags left at their
// defaults whose corresponding environment variable is set, and returns the
// first value which does not parse.
func setCLIFlagsFromEnvVars(fs *flag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *flag.Flag) {
		if firstErr == nil {
			firstErr = setCLIFlagFromEnvVar(f)
		}
	})
	return firstErr
}

// setCLIFlagFromEnvVar sets f from its environment variable, if that is set
// and f was not given on the command line.
// Environment variable names use the form MUDSMOKE_{flag name}, with any
// dashes replaced by underscores
// For example, flag debug-logging uses the environment variable
// MUDSMOKE_DEBUG_LOGGING
func setCLIFlagFromEnvVar(f *flag.Flag) error {
	envVarName := "MUDSMOKE_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
	envVarValue := os.Getenv(envVarName)
	if envVarValue != "" && f.Value.String() == f.DefValue {
		err := f.Value.Set(envVarValue)
		if err != nil {
			return fmt.Errorf("while setting value %q from %s to flag %s: %w", envVarValue, envVarName, f.Name, err)
		}
	}
	return nil
}
