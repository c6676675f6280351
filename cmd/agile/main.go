package main

import "github.com/stuartb55/octopusagile/internal/cli"

func main() {
	cli.Execute()
}
