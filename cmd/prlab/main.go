package main

import "pre-resolution-lab/internal/cli"

func main() {
	cli.Execute()
}
