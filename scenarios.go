package mudsmoke

// Credentials used by the built-in scenarios. The server makes the first
// character it ever creates an administrator, so the admin scenario must
// run first against a fresh server.
const (
	DefaultAdminUser      = "TestAdmin"
	DefaultAdminPassword  = "admin123"
	DefaultPlayerUser     = "TestPlayer"
	DefaultPlayerPassword = "player123"
)

const (
	sectionStandard = "Standard Commands"
	sectionWiztool  = "Wiztool Commands"
	sectionDenied   = "Wiztool Access (Should Fail)"
)

// StandardSteps are the commands every character can use.
func StandardSteps() []Step {
	return inSection(sectionStandard,
		Expect("help", "commands"),
		Send("look"),
		Expect("who", "player"),
		Send("stats"),
	)
}

// WiztoolSteps exercise the administrator's file-system and evaluation
// tool, walking from the home directory down into /lib/std.
func WiztoolSteps() []Step {
	return inSection(sectionWiztool,
		Expect("wiz help", "Wiztool Commands"),
		Expect("pwd", "Current directory:"),
		Expect("ls", "Contents of"),
		Expect("cd /lib", "Changed directory"),
		Expect("pwd", "/lib"),
		Expect("ls", "std"),
		Expect("cd std", "Changed directory"),
		Expect("ls", "player"),
		Expect("eval 2 + 2", "int: 4"),
	)
}

// DeniedWiztoolSteps check that an ordinary player cannot reach the
// wiztool. A step passes when the server rejects the command outright, or
// at least does not act on it.
func DeniedWiztoolSteps() []Step {
	return inSection(sectionDenied,
		Step{
			Command: "wiz help",
			Expect:  Any(Text("Unknown command"), Not(Text("wiztool"))),
		},
		Step{
			Command: "cd /lib",
			Expect:  Any(Text("Unknown command"), Not(Text("Changed directory"))),
		},
		Step{
			Command: "eval 2 + 2",
			Expect:  Any(Text("Unknown command"), Not(Text("int: 4"))),
		},
	)
}

// AdminScenario logs in as the administrator and runs the standard and
// wiztool steps. Its failures fail the run.
func AdminScenario(user, password string) Scenario {
	return Scenario{
		Name:     "admin",
		User:     user,
		Password: password,
		Gate:     true,
		Quit:     "quit",
		Steps:    append(StandardSteps(), WiztoolSteps()...),
	}
}

// PlayerScenario logs in as an ordinary player, runs the standard steps
// and checks wiztool access is denied. Its failures are informational when
// another scenario gates the run.
func PlayerScenario(user, password string) Scenario {
	return Scenario{
		Name:     "player",
		User:     user,
		Password: password,
		Quit:     "quit",
		Steps:    append(StandardSteps(), DeniedWiztoolSteps()...),
	}
}

// DefaultScenarios returns the admin scenario followed by the player
// scenario, using the default credentials.
func DefaultScenarios() []Scenario {
	return []Scenario{
		AdminScenario(DefaultAdminUser, DefaultAdminPassword),
		PlayerScenario(DefaultPlayerUser, DefaultPlayerPassword),
	}
}

func inSection(section string, steps ...Step) []Step {
	for i := range steps {
		steps[i].Section = section
	}
	return steps
}
