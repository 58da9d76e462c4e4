package main

import "ekb/internal/cli"

func main() {
	cli.Execute()
}
