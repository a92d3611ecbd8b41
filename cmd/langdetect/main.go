package main

import "github.com/MeKo-Tech/langdetect/cmd/langdetect/cmd"

func main() {
	cmd.Execute()
}
