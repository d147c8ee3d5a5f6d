package main

import "trialrag/internal/cli"

func main() {
	cli.Execute()
}
