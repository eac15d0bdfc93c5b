package mudstub

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

// tree is the read-only directory layout the wiztool browses. Directory
// entries end in a slash.
var tree = map[string][]string{
	"/":              {"domains/", "lib/"},
	"/domains":       {"start/"},
	"/domains/start": {"room.c"},
	"/lib":           {"std/"},
	"/lib/std":       {"living.c", "object.c", "player.c", "room.c"},
}

// command runs one line typed by a character in the game, returning false
// when the character is leaving.
func (c *connection) command(line string) bool {
	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])
	args := fields[1:]
	switch verb {
	case "quit":
		c.write(fmt.Sprintf("\r\nGoodbye, %s!\r\n", c.name))
		return false
	case "help":
		c.reply(c.help())
		return true
	case "look", "l":
		c.reply("The Starting Room\r\nA bare stone chamber, lit by a single torch.\r\nThere are no obvious exits.\r\n")
		return true
	case "who":
		c.reply(c.who())
		return true
	case "stats", "score":
		c.reply(c.stats())
		return true
	}
	if c.account.admin {
		if out, ok := c.wiztool(verb, args); ok {
			c.reply(out)
			return true
		}
	}
	c.reply(fmt.Sprintf("Unknown command: %s\r\nType 'help' for available commands.\r\n", line))
	return true
}

// reply writes out followed by the input prompt, in the same write.
func (c *connection) reply(out string) {
	c.write(out + prompt)
}

func (c *connection) help() string {
	var b strings.Builder
	b.WriteString("Available commands:\r\n")
	b.WriteString("  help   - show this list\r\n")
	b.WriteString("  look   - describe your surroundings\r\n")
	b.WriteString("  who    - list characters in the game\r\n")
	b.WriteString("  stats  - show your character\r\n")
	b.WriteString("  quit   - leave the game\r\n")
	if c.account.admin {
		b.WriteString("Administrators also have the wiztool, see 'wiz help'.\r\n")
	}
	return b.String()
}

func (c *connection) who() string {
	c.server.accountsMu.Lock()
	names := make([]string, 0, len(c.server.accounts))
	for _, a := range c.server.accounts {
		names = append(names, a.name)
	}
	c.server.accountsMu.Unlock()
	sort.Strings(names)
	return fmt.Sprintf("Players known to this server:\r\n  %s\r\n%d player(s) total.\r\n", strings.Join(names, "\r\n  "), len(names))
}

func (c *connection) stats() string {
	privilege := "player"
	if c.account.admin {
		privilege = "admin"
	}
	return fmt.Sprintf("Name:      %s\r\nLevel:     1\r\nHealth:    100/100\r\nPrivilege: %s\r\n", c.name, privilege)
}

// wiztool runs administrator commands. It reports false for verbs it does
// not know.
func (c *connection) wiztool(verb string, args []string) (string, bool) {
	switch verb {
	case "wiz":
		if len(args) > 0 && strings.ToLower(args[0]) != "help" {
			return fmt.Sprintf("wiz: unknown subcommand %q, try 'wiz help'.\r\n", args[0]), true
		}
		return "Wiztool Commands:\r\n" +
			"  pwd              - show the current directory\r\n" +
			"  ls [dir]         - list a directory\r\n" +
			"  cd <dir>         - change directory\r\n" +
			"  eval <a> <op> <b> - evaluate integer arithmetic\r\n", true
	case "pwd":
		return fmt.Sprintf("Current directory: %s\r\n", c.cwd), true
	case "ls":
		dir := c.cwd
		if len(args) > 0 {
			dir = c.resolve(args[0])
		}
		entries, ok := tree[dir]
		if !ok {
			return fmt.Sprintf("ls: no such directory: %s\r\n", dir), true
		}
		return fmt.Sprintf("Contents of %s:\r\n  %s\r\n", dir, strings.Join(entries, "\r\n  ")), true
	case "cd":
		dir := "/"
		if len(args) > 0 {
			dir = c.resolve(args[0])
		}
		if _, ok := tree[dir]; !ok {
			return fmt.Sprintf("cd: no such directory: %s\r\n", dir), true
		}
		c.cwd = dir
		return fmt.Sprintf("Changed directory to %s\r\n", dir), true
	case "eval":
		return eval(strings.Join(args, " ")), true
	}
	return "", false
}

// resolve turns p into a clean absolute path relative to the working
// directory.
func (c *connection) resolve(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(c.cwd, p)
	}
	return path.Clean(p)
}

// eval evaluates "a op b" for integers a and b.
func eval(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return fmt.Sprintf("eval: expected <a> <op> <b>, got %q\r\n", expr)
	}
	a, errA := strconv.Atoi(fields[0])
	b, errB := strconv.Atoi(fields[2])
	if errA != nil || errB != nil {
		return fmt.Sprintf("eval: only integers are supported, got %q\r\n", expr)
	}
	var n int
	switch fields[1] {
	case "+":
		n = a + b
	case "-":
		n = a - b
	case "*":
		n = a * b
	case "/":
		if b == 0 {
			return "eval: division by zero\r\n"
		}
		n = a / b
	case "%":
		if b == 0 {
			return "eval: division by zero\r\n"
		}
		n = a % b
	default:
		return fmt.Sprintf("eval: unknown operator %q\r\n", fields[1])
	}
	return fmt.Sprintf("Result (int: %d)\r\n", n)
}
