package main

import (
	"os"

	"structuredness/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
