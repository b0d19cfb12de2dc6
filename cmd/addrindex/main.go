package main

import "github.com/vietddude/addrindex/internal/cli"

func main() {
	cli.Execute()
}
