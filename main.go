package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/auth"
	"github.com/mcosolutions20/historical-stocks/src/cache"
	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/portfolio"
	"github.com/mcosolutions20/historical-stocks/src/repository"
	"github.com/mcosolutions20/historical-stocks/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	prices := repository.NewPriceRepository()
	benchmark := portfolio.NewBenchmarkService(prices, repository.NewBenchmarkRepository())

	cacheConfig := cache.GetConfig()
	engine := portfolio.NewService(
		repository.NewPortfolioRepository(),
		repository.NewTransactionRepository(),
		prices,
		benchmark,
		cache.New(),
		time.Duration(cacheConfig.PerfTTLSeconds)*time.Second,
	)

	serverConfig := server.GetConfig()
	server.StartServer(serverConfig.Port, server.Deps{
		AuthConfig: auth.GetConfig(),
		Users:      repository.NewUserRepository(),
		Engine:     engine,
	})
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
