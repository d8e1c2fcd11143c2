package main

import "github.com/nkarimi/automsg-engine/cmd"

func main() {
	cmd.Execute()
}
