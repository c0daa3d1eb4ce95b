// Copyright (c) 2019 The Gantry Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LevelOverwrite is the endpoint the overwrite handler is mounted on.
const LevelOverwrite = "/logging-level"

const (
	_levelParam    = "level"
	_durationParam = "duration"
)

// LevelOverwriteHandler returns a handler which overwrites the global logrus
// level for a bounded duration, then reverts to the given initial level. Only
// info and debug are accepted so an operator cannot silence error logs by
// accident. Usage:
//	/logging-level?level=debug&duration=10m
func LevelOverwriteHandler(
	initialLevel log.Level) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		levelStr := values.Get(_levelParam)
		durationStr := values.Get(_durationParam)
		if levelStr == "" || durationStr == "" {
			http.Error(
				w,
				fmt.Sprintf("Required params not set: %s, %s",
					_levelParam, _durationParam),
				http.StatusBadRequest)
			return
		}

		newLevel, err := log.ParseLevel(levelStr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if newLevel != log.InfoLevel && newLevel != log.DebugLevel {
			http.Error(
				w,
				fmt.Sprintf("New Level %s is not info or debug", levelStr),
				http.StatusBadRequest)
			return
		}

		duration, err := time.ParseDuration(durationStr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.WithField("new_level", newLevel).
			WithField("duration", duration).
			Info("Overwriting log level")
		log.SetLevel(newLevel)

		time.AfterFunc(duration, func() {
			log.WithField("level", initialLevel).
				Info("Reverting log level after overwrite")
			log.SetLevel(initialLevel)
		})

		fmt.Fprintf(w, "Level changed to %s for a duration of %s\n",
			levelStr, duration)
	}
}
