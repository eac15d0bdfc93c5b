package main

import (
	"os"

	"github.com/ivanfetch/mudsmoke"
)

func main() {
	os.Exit(mudsmoke.RunCLI())
}
