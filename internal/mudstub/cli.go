package mudstub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
)

// RunCLI processes command-line arguments, instantiates a new server, calls
// ListenAndServe, waits for the server routines to exit, then returns an
// exit status code.
func RunCLI() int {
	server, err := NewServerFromArgs(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		return 1
	}
	err = server.ListenAndServe()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	server.WaitForExit()
	return 0
}

// NewServerFromArgs returns a type *Server after processing command-line
// arguments.
func NewServerFromArgs(args []string) (*Server, error) {
	fs := flag.NewFlagSet("mudstub", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Printf(`mudstub pretends to be a text MUD server, for trying out mudsmoke.

The first character created is an administrator with access to the wiztool. Press Ctrl-C to stop the server.

Usage: %s [-d|--debug-logging] [-l|--listen-address [<IP address>]:<port>] [--response-delay <duration>]

`,
			filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	CLIDebugLogging := fs.BoolP("debug-logging", "d", false, "Enable debug logging. This can also be enabled by setting the MUDSTUB_DEBUG_LOGGING environment variable to true.")
	CLIListenAddress := fs.StringP("listen-address", "l", ":3000", "The TCP address to listen on, of the form IP:Port or :Port. This can also be set via the MUDSTUB_LISTEN_ADDRESS environment variable.")
	CLIResponseDelay := fs.Duration("response-delay", 0, "How long to pause before answering each line of input.")
	CLIChunkSize := fs.Int("chunk-size", 0, "Split every response into writes of at most this many bytes. 0 writes each response at once.")
	CLIWiztoolNoticeDelay := fs.Duration("wiztool-notice-delay", defaultWiztoolNoticeDelay, "How long after an administrator enters the game the wiztool announces itself. A negative value disables the notice.")
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	var envErr error
	fs.VisitAll(func(f *flag.Flag) {
		if envErr == nil {
			envErr = setCLIFlagFromEnvVar(f)
		}
	})
	if envErr != nil {
		return nil, envErr
	}

	optionalConfig := []ServerOption{
		WithListenAddress(*CLIListenAddress),
		WithResponseDelay(*CLIResponseDelay),
		WithWiztoolNoticeDelay(*CLIWiztoolNoticeDelay),
	}
	if *CLIDebugLogging {
		optionalConfig = append(optionalConfig, WithDebugLogging())
	}
	if *CLIChunkSize > 0 {
		optionalConfig = append(optionalConfig, WithChunkedWrites(*CLIChunkSize, defaultChunkGap))
	}
	return NewServer(optionalConfig...)
}

// setCLIFlagFromEnvVar sets any flag left at its default from the
// environment variable MUDSTUB_{flag name}, with dashes replaced by
// underscores.
func setCLIFlagFromEnvVar(f *flag.Flag) error {
	envVarName := "MUDSTUB_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
	envVarValue := os.Getenv(envVarName)
	if envVarValue != "" && f.Value.String() == f.DefValue {
		err := f.Value.Set(envVarValue)
		if err != nil {
			return fmt.Errorf("while setting value %q from %s to flag %s: %w", envVarValue, envVarName, f.Name, err)
		}
	}
	return nil
}
