package main

import (
	stdLog "log"
	"time"

	"github.com/Astemirdum/library-catalog/catalog/app"
	"github.com/Astemirdum/library-catalog/catalog/config"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdLog.Println("no .env file, using the environment")
	}
	cfg := config.NewConfig(
		config.WithWriteTimeout(time.Minute),
	)

	app.Run(cfg)
}
