package main

import "github.com/voluzi/cloudvitals/cmd/vitalsctl/cmd"

func main() {
	cmd.Execute()
}
