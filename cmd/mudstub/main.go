package main

import (
	"os"

	"github.com/ivanfetch/mudsmoke/internal/mudstub"
)

func main() {
	os.Exit(mudstub.RunCLI())
}
