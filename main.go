package main

import "github.com/minhvu/chatrake/cmd"

func main() {
	cmd.Execute()
}
