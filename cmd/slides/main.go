// Package main is the entry point for the slides CLI.
package main

import "github.com/slidecraft/slides-cli/internal/cli"

func main() {
	cli.Execute()
}
