package main

import "thornfield.dev/daybook/cmd"

func main() {
	cmd.Execute()
}
