package main

import "github.com/oshokin/nosleep/cmd/nosleep/cmd"

func main() {
	cmd.Execute()
}
