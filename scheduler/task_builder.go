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

package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gogo/protobuf/proto"
	mesos "github.com/mesos/mesos-go/api/v0/mesosproto"
	"github.com/mesos/mesos-go/api/v0/mesosutil"
	log "github.com/sirupsen/logrus"

	"github.com/gantry-ci/gantry/agent"
)

// The container executor reads the composed agent bootstrap command from
// this environment variable.
const _bootstrapEnvName = "AGENT_COMMAND"

var (
	errNoContainerImage = errors.New("container image is not configured")
	errNoExecutorPath   = errors.New("container executor path is not configured")
)

// containerPayload is the document handed to the container executor in the
// task data. Field order mirrors the document layout the executor expects.
type containerPayload struct {
	ID            string            `json:"id"`
	Cmd           string            `json:"cmd"`
	Env           map[string]string `json:"env"`
	Instances     int               `json:"instances"`
	CPUs          float64           `json:"cpus"`
	Mem           float64           `json:"mem"`
	Executor      string            `json:"executor"`
	Constraints   []string          `json:"constraints"`
	URIs          []string          `json:"uris"`
	Ports         []uint32          `json:"ports"`
	TaskRateLimit int               `json:"taskRateLimit"`
}

// taskBuilder builds launchable Mesos task descriptors for matched agent
// requests, in either the direct command or the containerized executor
// variant.
type taskBuilder struct {
	cfg *Config
}

func newTaskBuilder(cfg *Config) *taskBuilder {
	return &taskBuilder{cfg: cfg}
}

// build produces the TaskInfo launching the requested agent on the offer's
// host.
func (tb *taskBuilder) build(offer *mesos.Offer, spec agent.Spec) (*mesos.TaskInfo, error) {
	if tb.cfg.containerEnabled() {
		return tb.buildContainerTask(offer, spec)
	}
	return tb.buildCommandTask(offer, spec)
}

// buildCommandTask launches the agent JVM directly through the Mesos
// command executor, which fetches the agent jar before running the command.
func (tb *taskBuilder) buildCommandTask(offer *mesos.Offer, spec agent.Spec) (*mesos.TaskInfo, error) {
	jarURL := tb.agentJarURL()
	log.WithFields(log.Fields{
		"task_id": spec.Name,
		"uri":     jarURL,
	}).Info("Building agent task")

	return &mesos.TaskInfo{
		Name:      proto.String("task " + spec.Name),
		TaskId:    mesosutil.NewTaskID(spec.Name),
		SlaveId:   offer.GetSlaveId(),
		Resources: tb.reservations(spec),
		Command: &mesos.CommandInfo{
			Value: proto.String(tb.launchCommand(spec)),
			Uris: []*mesos.CommandInfo_URI{
				{Value: proto.String(jarURL)},
			},
		},
	}, nil
}

// buildContainerTask launches the agent through the configured container
// executor instead of the command executor. The executor receives a payload
// document in the task data; the bootstrap command, which fetches the agent
// jar and then runs the regular launch command, travels in the payload
// environment.
func (tb *taskBuilder) buildContainerTask(offer *mesos.Offer, spec agent.Spec) (*mesos.TaskInfo, error) {
	container := tb.cfg.Container
	if container.Image == "" {
		return nil, errNoContainerImage
	}
	if container.ExecutorPath == "" {
		return nil, errNoExecutorPath
	}

	bootstrap := fmt.Sprintf("wget -O %s %s && %s",
		path.Base(tb.cfg.AgentJarPath), tb.agentJarURL(), tb.launchCommand(spec))

	payload := &containerPayload{
		ID:  "task_" + spec.Name,
		Cmd: container.Image,
		Env: map[string]string{
			_bootstrapEnvName: bootstrap,
		},
		Instances:     1,
		CPUs:          spec.CPUs,
		Mem:           reservedMem(spec.MemMB),
		Executor:      container.ExecutorPath,
		Constraints:   []string{},
		URIs:          []string{},
		Ports:         []uint32{},
		TaskRateLimit: 1,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	command := fmt.Sprintf("exec %s %s", container.ExecutorPath, container.Image)
	log.WithFields(log.Fields{
		"task_id": spec.Name,
		"command": command,
	}).Info("Building containerized agent task")

	executor := &mesos.ExecutorInfo{
		ExecutorId:  &mesos.ExecutorID{Value: proto.String("executor_" + spec.Name)},
		FrameworkId: offer.GetFrameworkId(),
		Command: &mesos.CommandInfo{
			Value: proto.String(command),
		},
	}

	return &mesos.TaskInfo{
		Name:      proto.String("task " + spec.Name),
		TaskId:    mesosutil.NewTaskID(spec.Name),
		SlaveId:   offer.GetSlaveId(),
		Resources: tb.reservations(spec),
		Data:      data,
		Executor:  executor,
	}, nil
}

// reservations returns the cpu and inflated memory reservations for one
// agent task.
func (tb *taskBuilder) reservations(spec agent.Spec) []*mesos.Resource {
	return []*mesos.Resource{
		mesosutil.NewScalarResource(_cpusName, spec.CPUs),
		mesosutil.NewScalarResource(_memName, reservedMem(spec.MemMB)),
	}
}

// launchCommand renders the JVM command for the agent: heap bounded by the
// requested memory, connecting back to the CI master under the agent name.
func (tb *taskBuilder) launchCommand(spec agent.Spec) string {
	connectURL := joinPaths(tb.cfg.CIMasterURL,
		fmt.Sprintf(tb.cfg.ConnectPathFormat, spec.Name))
	return fmt.Sprintf(tb.cfg.CommandFormat, int64(spec.MemMB), connectURL)
}

func (tb *taskBuilder) agentJarURL() string {
	return joinPaths(tb.cfg.CIMasterURL, tb.cfg.AgentJarPath)
}

// reservedMem inflates the requested heap by the overhead factor. The
// matcher tests the same figure against offers, so an accepted offer always
// covers the reservation.
func reservedMem(requestedMB float64) float64 {
	return (1 + _memOverheadFactor) * requestedMB
}

// joinPaths joins two URL fragments with exactly one separating slash,
// tolerating a trailing slash on the prefix and a leading one on the
// suffix.
func joinPaths(prefix, suffix string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
