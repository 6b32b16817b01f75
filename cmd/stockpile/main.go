package main

import "github.com/stockpile-hq/stockpile/cmd/stockpile/cmd"

func main() {
	cmd.Execute()
}
