// Package util
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
package util

import (
	"io/fs"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/je4/bordercrop/internal"
	"github.com/je4/bordercrop/pkg/bordercrop"
	"github.com/je4/utils/v2/pkg/stashconfig"
)

type Config struct {
	Crop   *bordercrop.CropConfig   `toml:"bordercrop"`
	Server *bordercrop.ConfigServer `toml:"server"`
	Log    stashconfig.Config       `toml:"log"`
}

// LoadConfig decodes the embedded default configuration and every given
// toml file on top of it. Later files overwrite earlier values.
func LoadConfig(files ...string) (*Config, error) {
	var conf = &Config{
		Crop:   bordercrop.GetDefaultConfig(),
		Server: bordercrop.GetDefaultServerConfig(),
	}
	defaultToml, err := fs.ReadFile(internal.InternalFS, internal.DefaultConfigName)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read embedded %s", internal.DefaultConfigName)
	}
	if err := toml.Unmarshal(defaultToml, conf); err != nil {
		return nil, errors.Wrapf(err, "Error unmarshalling embedded config")
	}
	for _, fp := range files {
		if fp == "" {
			continue
		}
		if _, err := toml.DecodeFile(fp, conf); err != nil {
			return nil, errors.Wrapf(err, "Error on loading config %s", fp)
		}
	}
	return conf, nil
}
