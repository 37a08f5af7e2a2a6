package main

import "github.com/notargets/dfem/cmd"

func main() {
	cmd.Execute()
}
