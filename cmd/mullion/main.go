package main

import "github.com/mullionhq/mullion/cmd/mullion/commands"

func main() {
	commands.Execute()
}
