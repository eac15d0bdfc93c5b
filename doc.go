// Package mudsmoke smoke-tests a line-oriented text MUD server over a raw
// TCP connection.
//
// A Driver owns one connection and turns the server's unframed output into
// request and response exchanges: ReceiveUntil accumulates output until a
// Pattern matches or a deadline passes. Login walks a Driver through the
// server's new or returning character prompts. A Scenario logs in and runs
// Steps, checking each response with a Matcher, and a Harness runs
// scenarios one after another, each over a fresh connection, reporting
// through a Reporter.
//
// RunCLI wraps all of this for the mudsmoke command.
package mudsmoke
