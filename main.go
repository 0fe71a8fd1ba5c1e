/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/devnovate/api/cmd"

func main() {
	cmd.Execute()
}
