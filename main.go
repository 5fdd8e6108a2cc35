package main

import "github.com/kew222/Self-Targeting-Spacer-Search-tool/cmd"

func main() {
	cmd.Execute()
}
