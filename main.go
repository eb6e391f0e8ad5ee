package main

import "github.com/HermYeh/face-attendance/cmd"

func main() {
	cmd.Execute()
}
