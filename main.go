package main

import "github.com/jfmyers9/playerhub/cmd"

func main() {
	cmd.Execute()
}
