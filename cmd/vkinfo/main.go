// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/gfx/vkr"
)

var configFile = flag.String("config", "", "Dotenv file with settings")

func main() {
	flag.Parse()

	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}

	driver, err := vkr.NewDriver(nil)
	if err != nil {
		logrus.WithError(err).Fatal("load vulkan")
	}

	adapters, err := core.DescribeAdapters(driver, cfg.Instance)
	if err != nil {
		logrus.WithError(err).Fatal("describe adapters")
	}

	bytes, err := json.MarshalIndent(adapters, "", "  ")
	if err != nil {
		logrus.WithError(err).Fatal("encode report")
	}
	fmt.Printf("%s\n", bytes)
}
