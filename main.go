/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/othaime-en/validapi/cmd"

func main() {
	cmd.Execute()
}
