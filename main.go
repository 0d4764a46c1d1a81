package main

import "github.com/mudlink/mudlink/cmd"

func main() {
	cmd.Execute()
}
