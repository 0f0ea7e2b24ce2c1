package main

import "github.com/circuitforge/circuitsync/cmd/circuitsync/cmd"

func main() {
	cmd.Execute()
}
