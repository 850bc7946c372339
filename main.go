package main

import "github.com/amiinehachemi/portfolio-copilot/cmd"

func main() {
	cmd.Execute()
}
