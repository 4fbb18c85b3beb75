package main

import "github.com/kaizen-app/kaizen/internal/cli"

func main() {
	cli.Execute()
}
