package main

import "github.com/abdul-hamid-achik/jsonprobe/apps/cli/cmd"

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime)
}
