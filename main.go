package main

import "event-translator/internal/cli"

func main() {
	cli.Execute()
}
