package main

import "github.com/brogergvhs/mangaext/cmd"

func main() {
	cmd.Execute()
}
