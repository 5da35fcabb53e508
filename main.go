package main

import "github.com/voidreamer/maya-usd-author/cmd"

func main() {
	cmd.Execute()
}
