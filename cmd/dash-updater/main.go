package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/hologram-io/dash-updater/cmd/dash-updater/app"
	"github.com/hologram-io/dash-updater/internal/updater"
	"github.com/hologram-io/dash-updater/pkg/log"
)

func main() {
	err := app.NewApp().Run()
	if err != nil && !updater.IsMissingParameter(err) {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
	}
	if err != nil {
		log.Debug("Run ended", "detail", updater.Detail(err))
	}
	os.Exit(app.ExitCode(err))
}
