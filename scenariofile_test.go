package mudsmoke_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivanfetch/mudsmoke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const wizardFile = `
scenarios:
  - name: wizard
    user: Merlin
    password: abracadabra
    enter_timeout: 5s
    steps:
      - section: Standard Commands
        command: help
        expect:
          contains: commands
      - command: look
      - command: eval 6 * 7
        wait: 'int: \d+'
        timeout: 1500ms
        expect:
          regexp: 'int: 42'
  - name: apprentice
    user: Wart
    password: sword-in-stone
    gate: false
    quit: ""
    steps:
      - section: Wiztool Access (Should Fail)
        command: wiz help
        expect:
          any:
            - contains: Unknown command
            - not:
                contains: wiztool
`

func TestLoadScenarios(t *testing.T) {
	t.Parallel()
	scenarios, err := mudsmoke.LoadScenarios(writeScenarioFile(t, wizardFile))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	wizard := scenarios[0]
	assert.Equal(t, "wizard", wizard.Name)
	assert.Equal(t, "Merlin", wizard.User)
	assert.True(t, wizard.Gate, "scenarios from a file gate the run unless told otherwise")
	assert.Equal(t, "quit", wizard.Quit)
	assert.Equal(t, 5*time.Second, wizard.EnterTimeout)
	require.Len(t, wizard.Steps, 3)

	help := wizard.Steps[0]
	assert.Equal(t, "Standard Commands", help.Section)
	require.NotNil(t, help.Wait, "a contains expectation is also waited for")
	assert.True(t, help.Wait.MatchString("Available Commands:"))

	look := wizard.Steps[1]
	assert.Nil(t, look.Expect)
	assert.Nil(t, look.Wait)

	eval := wizard.Steps[2]
	assert.Equal(t, 1500*time.Millisecond, eval.Timeout)
	assert.True(t, eval.Wait.MatchString("Result (int: 7)"))
	passed, checked, _ := eval.Expect.Check("Result (int: 42)")
	assert.True(t, passed)
	assert.True(t, checked)

	apprentice := scenarios[1]
	assert.False(t, apprentice.Gate)
	assert.Empty(t, apprentice.Quit)
	denied := apprentice.Steps[0]
	assert.Nil(t, denied.Wait)
	passed, _, _ = denied.Expect.Check("Unknown command: wiz help")
	assert.True(t, passed)
	passed, _, _ = denied.Expect.Check("Wiztool Commands:")
	assert.False(t, passed)
}

func TestLoadScenariosRejectsBadFiles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty",
			content: "",
			wantErr: "no scenarios defined",
		},
		{
			name:    "unknown key",
			content: "scenarios:\n  - name: a\n    user: b\n    pasword: c\n",
			wantErr: "field pasword not found",
		},
		{
			name:    "missing user",
			content: "scenarios:\n  - name: a\n",
			wantErr: "scenario 1 (a): user is required",
		},
		{
			name:    "missing command",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - expect: {contains: x}\n",
			wantErr: "step 1: command is required",
		},
		{
			name:    "invalid regexp",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - command: ls\n        expect: {regexp: '(unclosed'}\n",
			wantErr: "step 1: expect:",
		},
		{
			name:    "invalid wait",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - command: ls\n        wait: '[z-a]'\n",
			wantErr: "step 1: wait:",
		},
		{
			name:    "two expectations in one node",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - command: ls\n        expect: {contains: x, regexp: y}\n",
			wantErr: "want exactly one of contains, regexp, not, any or all, got 2",
		},
		{
			name:    "empty expectation",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - command: ls\n        expect: {}\n",
			wantErr: "got 0",
		},
		{
			name:    "negative timeout",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - command: ls\n        timeout: -1s\n",
			wantErr: "timeout cannot be negative",
		},
		{
			name:    "timeout without a wait pattern",
			content: "scenarios:\n  - name: a\n    user: b\n    steps:\n      - command: ls\n        timeout: 2s\n        expect: {regexp: 'int: 4'}\n",
			wantErr: "step 1: timeout needs a wait pattern",
		},
		{
			name:    "duplicate names",
			content: "scenarios:\n  - name: a\n    user: b\n  - name: a\n    user: c\n",
			wantErr: `scenario "a" defined more than once`,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeScenarioFile(t, tc.content)
			_, err := mudsmoke.LoadScenarios(path)
			require.Error(t, err)
			var fileErr *mudsmoke.ScenarioFileError
			require.ErrorAs(t, err, &fileErr)
			assert.Equal(t, path, fileErr.Path)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadScenariosMissingFile(t *testing.T) {
	t.Parallel()
	_, err := mudsmoke.LoadScenarios(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSelectScenarios(t *testing.T) {
	t.Parallel()
	all := mudsmoke.DefaultScenarios()

	selected, err := mudsmoke.SelectScenarios(all, nil)
	require.NoError(t, err)
	assert.Len(t, selected, 2)

	selected, err = mudsmoke.SelectScenarios(all, []string{"player", "admin"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "admin", selected[0].Name, "file order is kept")

	selected, err = mudsmoke.SelectScenarios(all, []string{"player"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "player", selected[0].Name)

	_, err = mudsmoke.SelectScenarios(all, []string{"wizard", "admin", "builder"})
	assert.EqualError(t, err, "no scenario named builder, wizard")
}
