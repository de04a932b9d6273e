package main

import (
	"fmt"
	"log"

	"github.com/apetrenko/hublink/internal/app"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func printBuildInfo() {
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}

func main() {
	printBuildInfo()

	theApp, err := app.New()
	if err != nil {
		log.Fatalf("application init error: %v", err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Fatalf("application run error: %v", err)
	}
}
