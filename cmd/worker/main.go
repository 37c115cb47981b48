package main

import (
	"os"

	"github.com/romariotrain/frames-service/internal/app"
)

func main() {
	os.Exit(app.Run("worker", run))
}
