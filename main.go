package main

import "github.com/bestsecurity/meetman/cmd"

func main() {
	cmd.Execute()
}
