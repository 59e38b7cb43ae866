package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/noteit/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "noteit: %v\n", err)
		os.Exit(1)
	}
}
