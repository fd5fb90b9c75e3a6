package main

import "ratepace/cmd"

func main() {
	cmd.Execute()
}
