package main

import (
	"log"

	"github.com/joho/godotenv"

	"animedrive/bot"
	"animedrive/core/bootstrap"
	corecmd "animedrive/core/cmd"
)

func main() {
	// Local dev convenience; real deployments set env directly.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.(*bot.Config)
			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			return bot.NewApp(cfg, res.DB)
		},
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
