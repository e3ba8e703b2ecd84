package main

import (
	"log"

	"github.com/tech-arch1tect/inkpress/app"
)

func main() {
	application, err := app.NewApp().WithAutoConfig().Build()
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatal(err)
	}
}
