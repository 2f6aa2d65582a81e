package main

import "github.com/evolearn/studyhub/cmd"

func main() {
	cmd.Execute()
}
