package main

import "github.com/rhinofi/ampleforth-wrapper/cmd"

func main() {
	cmd.Execute()
}
