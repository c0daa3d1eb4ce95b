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

package mesos

import (
	"context"
	"io/ioutil"
	"net"
	"strings"

	"github.com/gogo/protobuf/proto"
	"github.com/mesos/mesos-go/api/v0/auth"
	"github.com/mesos/mesos-go/api/v0/auth/sasl"
	mesosproto "github.com/mesos/mesos-go/api/v0/mesosproto"
	sched "github.com/mesos/mesos-go/api/v0/scheduler"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gantry-ci/gantry/scheduler"
)

// NewDriverFactory returns a factory producing scheduler drivers connected
// to the configured master. Each invocation builds a fresh driver so a
// stopped session can be replaced.
func NewDriverFactory(cfg *Config) scheduler.DriverFactory {
	return func(s sched.Scheduler) (scheduler.Driver, error) {
		dcfg, err := driverConfig(cfg, s)
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"master":    cfg.Master,
			"framework": cfg.Framework.Name,
		}).Info("Creating mesos scheduler driver")

		driver, err := sched.NewMesosSchedulerDriver(dcfg)
		if err != nil {
			return nil, errors.Wrap(err, "create mesos scheduler driver")
		}
		return driver, nil
	}
}

// LoadSecret reads the framework authentication secret from the configured
// secret file, so that callers can scrub the literal value from their
// output. It returns an empty string when no secret file is configured.
func LoadSecret(cfg *Config) (string, error) {
	cfg.normalize()
	if cfg.Framework.SecretFile == "" {
		return "", nil
	}
	return readSecretFile(cfg.Framework.SecretFile)
}

func driverConfig(cfg *Config, s sched.Scheduler) (sched.DriverConfig, error) {
	cfg.normalize()

	dcfg := sched.DriverConfig{
		Scheduler: s,
		Framework: frameworkInfo(cfg.Framework),
		Master:    cfg.Master,
	}

	if addr := cfg.Framework.BindingAddress; addr != "" {
		ip := net.ParseIP(addr)
		if ip == nil {
			return sched.DriverConfig{}, errors.Errorf(
				"invalid binding address %q", addr)
		}
		dcfg.BindingAddress = ip
	}

	if cfg.Framework.Principal != "" {
		cred, err := credential(cfg.Framework)
		if err != nil {
			return sched.DriverConfig{}, err
		}
		dcfg.Credential = cred

		bindingAddress := dcfg.BindingAddress
		dcfg.WithAuthContext = func(ctx context.Context) context.Context {
			ctx = auth.WithLoginProvider(ctx, sasl.ProviderName)
			if bindingAddress != nil {
				ctx = sasl.WithBindingAddress(ctx, bindingAddress)
			}
			return ctx
		}
	}

	return dcfg, nil
}

// frameworkInfo translates framework configuration into the registration
// proto. Optional proto fields stay unset unless configured.
func frameworkInfo(fw *FrameworkConfig) *mesosproto.FrameworkInfo {
	info := &mesosproto.FrameworkInfo{
		User:       proto.String(fw.User),
		Name:       proto.String(fw.Name),
		Checkpoint: proto.Bool(fw.Checkpoint),
	}
	if fw.Role != "" {
		info.Role = proto.String(fw.Role)
	}
	if fw.FailoverTimeout > 0 {
		info.FailoverTimeout = proto.Float64(fw.FailoverTimeout)
	}
	if fw.Principal != "" {
		info.Principal = proto.String(fw.Principal)
	}
	return info
}

// credential loads the framework credential for authenticated
// registration.
func credential(fw *FrameworkConfig) (*mesosproto.Credential, error) {
	cred := &mesosproto.Credential{
		Principal: proto.String(fw.Principal),
	}
	if fw.SecretFile == "" {
		return cred, nil
	}

	secret, err := readSecretFile(fw.SecretFile)
	if err != nil {
		return nil, err
	}
	cred.Secret = proto.String(secret)
	return cred, nil
}

// readSecretFile returns the file contents with surrounding whitespace
// stripped. Secret files commonly end in a newline.
func readSecretFile(path string) (string, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read framework secret file")
	}
	return strings.TrimSpace(string(buf)), nil
}
