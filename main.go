package main

import "github.com/aceteam-ai/seqcipher/cmd"

func main() {
	cmd.Execute()
}
