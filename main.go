package main

import "github.com/civicstack/ms-go-payflow/cmd"

func main() {
	cmd.Execute()
}
