package main

import "github.com/MeKo-Tech/mvgeo/cmd/mvgeo/cmd"

func main() {
	cmd.Execute()
}
