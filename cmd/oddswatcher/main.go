package main

import "odds-value-alerts/internal/cli"

func main() {
	cli.Execute()
}
