package main

import "github.com/nextlevelbuilder/anyedit/cmd"

func main() {
	cmd.Execute()
}
