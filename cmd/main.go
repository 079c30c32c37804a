package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/mcosolutions20/historical-stocks/cmd/pricesync"
	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/repository"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "historical-stocks CMD"
	app.Usage = "The historical-stocks command line interface"

	app.Commands = []cli.Command{
		priceSyncCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var priceSyncCMD = cli.Command{
	Name:        "pricesync",
	Usage:       "pull the last days of daily bars for every known ticker",
	Action:      priceSyncAction,
	ArgsUsage:   "",
	Flags:       []cli.Flag{},
	Description: `Run the daily price sync job`,
}

func priceSyncAction(_ *cli.Context) error {
	logrus.Info("Starting price sync CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	job := &pricesync.PriceSync{
		Log:   logrus.WithField("cmd", "pricesync"),
		Store: repository.NewPriceRepository(),
	}

	if err := job.Start(); err != nil {
		logrus.WithError(err).Error("Starting price sync CMD")
		return err
	}
	return nil
}
