package main

import "pas-de-deux/cmd"

func main() {
	cmd.Execute()
}
