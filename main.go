package main

import (
	"github.com/ffibuild/ffiwrap/cmd"
)

var version = "v0.3.2"

func main() {
	cmd.Execute(version)
}
