package main

import (
	"os"

	"horse.fit/voxlate/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
