package main

import "github.com/example/seat-scheduler/internal/interfaces/cli"

func main() {
	cli.Execute()
}
