package main

import "github.com/poselab/poselab/cmd"

func main() {
	cmd.Execute()
}
