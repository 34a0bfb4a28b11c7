package main

import "marvin-sync/cmd"

func main() {
	cmd.Execute()
}
