package main

import (
	"fmt"

	"github.com/ostafen/aircard/cmd/cmd"
	"github.com/ostafen/aircard/internal/env"
)

func main() {
	PrintBanner()

	_ = cmd.Execute()
}

func PrintBanner() {
	fmt.Println("        _                         _ ")
	fmt.Println("  __ _ (_)_ __ ___ __ _ _ __ __| |")
	fmt.Println(" / _` || | '__/ __/ _` | '__/ _` |")
	fmt.Println("| (_| || | | | (_| (_| | | | (_| |")
	fmt.Println(" \\__,_||_|_|  \\___\\__,_|_|  \\__,_|")
	fmt.Println()
	fmt.Println("WiFi SD/CF card client")
	fmt.Println()
	fmt.Printf("Version:   %s\n", env.Version)
	fmt.Printf("Commit:    %s\n", env.CommitHash)
	fmt.Printf("Build Time: %s\n", env.BuildTime)
	fmt.Println(" ")
}
