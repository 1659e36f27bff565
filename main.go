package main

import "github.com/rayonsim/rayon/cmd"

func main() {
	cmd.Execute()
}
