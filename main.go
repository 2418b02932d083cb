package main

import "github.com/SumantSagar73/certify/server/cmd"

func main() {
	cmd.Execute()
}
