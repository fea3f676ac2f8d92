package main

import "github.com/migueldvb/fwrap/cmd"

var version = "v0.1.0"

func main() {
	cmd.Execute(version)
}
