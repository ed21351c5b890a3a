package main

import "github.com/CHW0n9/OpenCode-Token-Meter/cmd"

func main() {
	cmd.Execute()
}
