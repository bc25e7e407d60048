// Copyright 2021 Juergen Enge, info-age GmbH, Basel. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package bordercrop

import (
	"time"

	"emperror.dev/errors"
	"github.com/je4/bordercrop/pkg/border"
)

type duration struct {
	Duration time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type ConfigCache struct {
	Enabled  bool
	Folder   string
	InMemory bool
}

type ConfigWatch struct {
	Enabled  bool
	Debounce duration
}

type ConfigServer struct {
	Addr            string
	CertPEM         string
	KeyPEM          string
	AccessLog       string
	MaxUploadSize   int64
	ShutdownTimeout duration
}

type CropConfig struct {
	InputDir    string `toml:"input"`
	OutputDir   string `toml:"output"`
	Report      string
	Workers     uint
	Recursive   bool
	ZipAsFolder bool
	Extensions  []string
	JPEGQuality int
	DryRun      bool
	Scan        border.Options
	Cache       ConfigCache
	Watch       ConfigWatch
}

func GetDefaultConfig() *CropConfig {
	return &CropConfig{
		InputDir:    "input",
		OutputDir:   "output",
		Report:      "border_report.csv",
		Workers:     1,
		Extensions:  []string{".jpg", ".jpeg", ".png"},
		JPEGQuality: 95,
		Scan:        border.DefaultOptions(),
		Watch: ConfigWatch{
			Debounce: duration{Duration: 500 * time.Millisecond},
		},
	}
}

func GetDefaultServerConfig() *ConfigServer {
	return &ConfigServer{
		Addr:            "localhost:8765",
		MaxUploadSize:   64 << 20,
		ShutdownTimeout: duration{Duration: 30 * time.Second},
	}
}

func (conf *CropConfig) Validate() error {
	if err := conf.Scan.Validate(); err != nil {
		return errors.Wrap(err, "invalid scan options")
	}
	if conf.Workers == 0 {
		return errors.New("at least one worker needed")
	}
	if conf.InputDir == "" {
		return errors.New("no input folder")
	}
	if conf.OutputDir == "" && !conf.DryRun {
		return errors.New("no output folder")
	}
	if len(conf.Extensions) == 0 {
		return errors.New("no image extensions")
	}
	if conf.JPEGQuality < 1 || conf.JPEGQuality > 100 {
		return errors.Errorf("jpeg quality %d not in [1,100]", conf.JPEGQuality)
	}
	if conf.Cache.Enabled && conf.Cache.Folder == "" && !conf.Cache.InMemory {
		return errors.New("cache enabled without folder")
	}
	return nil
}
