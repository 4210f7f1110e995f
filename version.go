package main

import (
	"fmt"

	"github.com/artipie/artipie/internal/version"
)

func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}
