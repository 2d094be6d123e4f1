package main

import (
	"os"

	"courseware.fit/polyglot/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
