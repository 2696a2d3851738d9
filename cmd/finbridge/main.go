package main

import "github.com/finbridge/finbridge/cmd/finbridge/cmd"

func main() {
	cmd.Execute()
}
