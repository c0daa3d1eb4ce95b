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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempSecret(t *testing.T, content string) string {
	f, err := ioutil.TempFile("", "gantry-secret")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestFrameworkInfoDefaults(t *testing.T) {
	cfg := &Config{Master: "127.0.0.1:5050"}
	cfg.normalize()

	info := frameworkInfo(cfg.Framework)
	assert.Equal(t, "root", info.GetUser())
	assert.Equal(t, "gantry", info.GetName())
	assert.False(t, info.GetCheckpoint())
	assert.Nil(t, info.Role)
	assert.Nil(t, info.FailoverTimeout)
	assert.Nil(t, info.Principal)
}

func TestFrameworkInfoOptionalFields(t *testing.T) {
	info := frameworkInfo(&FrameworkConfig{
		Name:            "gantry-ci",
		User:            "ci",
		Role:            "build",
		Checkpoint:      true,
		FailoverTimeout: 3600,
		Principal:       "gantry",
	})

	assert.Equal(t, "gantry-ci", info.GetName())
	assert.Equal(t, "ci", info.GetUser())
	assert.Equal(t, "build", info.GetRole())
	assert.True(t, info.GetCheckpoint())
	assert.Equal(t, float64(3600), info.GetFailoverTimeout())
	assert.Equal(t, "gantry", info.GetPrincipal())
}

func TestCredentialFromFile(t *testing.T) {
	path := writeTempSecret(t, "hunter2\n")
	defer os.Remove(path)

	cred, err := credential(&FrameworkConfig{
		Principal:  "gantry",
		SecretFile: path,
	})
	require.NoError(t, err)
	assert.Equal(t, "gantry", cred.GetPrincipal())
	assert.Equal(t, "hunter2", cred.GetSecret())
}

func TestCredentialWithoutSecretFile(t *testing.T) {
	cred, err := credential(&FrameworkConfig{Principal: "gantry"})
	require.NoError(t, err)
	assert.Equal(t, "gantry", cred.GetPrincipal())
	assert.Nil(t, cred.Secret)
}

func TestCredentialMissingSecretFile(t *testing.T) {
	_, err := credential(&FrameworkConfig{
		Principal:  "gantry",
		SecretFile: "/nonexistent/gantry-secret",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read framework secret file")
}

func TestLoadSecret(t *testing.T) {
	path := writeTempSecret(t, "hunter2\n")
	defer os.Remove(path)

	secret, err := LoadSecret(&Config{
		Master: "127.0.0.1:5050",
		Framework: &FrameworkConfig{
			Principal:  "gantry",
			SecretFile: path,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)
}

func TestLoadSecretWithoutFile(t *testing.T) {
	secret, err := LoadSecret(&Config{Master: "127.0.0.1:5050"})
	require.NoError(t, err)
	assert.Empty(t, secret)
}

func TestDriverConfigAuthWiring(t *testing.T) {
	path := writeTempSecret(t, "hunter2")
	defer os.Remove(path)

	cfg := &Config{
		Master: "zk://127.0.0.1:2181/mesos",
		Framework: &FrameworkConfig{
			Principal:  "gantry",
			SecretFile: path,
		},
	}

	dcfg, err := driverConfig(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, dcfg.Credential)
	assert.Equal(t, "hunter2", dcfg.Credential.GetSecret())
	require.NotNil(t, dcfg.WithAuthContext)
	assert.NotNil(t, dcfg.WithAuthContext(context.Background()))
}

func TestDriverConfigWithoutPrincipal(t *testing.T) {
	cfg := &Config{Master: "127.0.0.1:5050"}

	dcfg, err := driverConfig(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, dcfg.Credential)
	assert.Nil(t, dcfg.WithAuthContext)
	assert.Equal(t, "127.0.0.1:5050", dcfg.Master)
}

func TestDriverConfigBindingAddress(t *testing.T) {
	cfg := &Config{
		Master: "127.0.0.1:5050",
		Framework: &FrameworkConfig{
			BindingAddress: "10.0.0.7",
		},
	}

	dcfg, err := driverConfig(cfg, nil)
	require.NoError(t, err)
	assert.True(t, dcfg.BindingAddress.Equal(net.ParseIP("10.0.0.7")))
}

func TestDriverConfigInvalidBindingAddress(t *testing.T) {
	cfg := &Config{
		Master: "127.0.0.1:5050",
		Framework: &FrameworkConfig{
			BindingAddress: "not-an-ip",
		},
	}

	_, err := driverConfig(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid binding address")
}
