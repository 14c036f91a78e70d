// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/utility/pack"
)

func init() {
	currentUserName = "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		currentUserName = u.Username
	}
}

var (
	currentUserName string
	author          = flag.String("author", "", "Set the author of the pack when compressing")
	version         = flag.Int64("version", 1, "Pack version number to create it with")
	extract         = flag.String("e", "", "Extract the pack into the given directory")
	compress        = flag.String("c", "", "Compress the given directory of compiled shaders")
	list            = flag.Bool("l", false, "List the contents of the pack")
	packFile        = flag.String("f", "shaders.vkp", "Pack file")
	silent          = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()

	log := logrus.New()
	if *silent {
		log.SetLevel(logrus.WarnLevel)
	}

	var ops int
	for _, set := range []bool{*extract != "", *compress != "", *list} {
		if set {
			ops++
		}
	}
	if ops == 0 {
		flag.PrintDefaults()
		return
	}
	if ops > 1 {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles(log)
	case *extract != "":
		err = extractFiles(log)
	default:
		err = listFiles()
	}
	if err != nil {
		log.WithError(err).Fatal("vkpack")
	}
}

func compressFiles(log logrus.FieldLogger) error {
	if _, err := os.Stat(*packFile); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	name := *author
	if name == "" {
		name = currentUserName
	}
	builder := pack.NewBuilder(pack.Header{
		Author:      name,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})

	if err := filepath.Walk(*compress, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(*compress, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		log.WithField("file", rel).Debug("adding")
		return builder.Add(filepath.ToSlash(rel), f)
	}); err != nil {
		return errors.Wrapf(err, "walk %s", *compress)
	}

	dst, err := os.Create(*packFile)
	if err != nil {
		return err
	}
	n, err := builder.WriteTo(dst)
	if err != nil {
		dst.Close()
		os.Remove(*packFile)
		return err
	}
	log.WithFields(logrus.Fields{
		"pack":    *packFile,
		"entries": builder.Len(),
		"bytes":   n,
	}).Info("pack written")
	return dst.Close()
}

func extractFiles(log logrus.FieldLogger) error {
	ar, err := pack.OpenFile(*packFile)
	if err != nil {
		return err
	}
	defer ar.Close()

	for _, name := range ar.Names() {
		dst := filepath.Join(*extract, filepath.FromSlash(name))
		if !strings.HasPrefix(dst, filepath.Clean(*extract)+string(filepath.Separator)) {
			return errors.Errorf("entry %q escapes the destination", name)
		}
		data, err := ar.ReadAll(name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(dst, data, 0644); err != nil {
			return err
		}
		log.WithField("file", dst).Debug("extracted")
	}
	return nil
}

func listFiles() error {
	ar, err := pack.OpenFile(*packFile)
	if err != nil {
		return err
	}
	defer ar.Close()

	h := ar.Header()
	fmt.Printf("author %s, version %d, created %s\n", h.Author, h.Version, time.Unix(h.DateCreated, 0).Format(time.RFC3339))
	for _, name := range ar.Names() {
		e, _ := ar.Stat(name)
		fmt.Printf("%10d %10d  %s\n", e.Size, e.CompressedSize, name)
	}
	return nil
}
