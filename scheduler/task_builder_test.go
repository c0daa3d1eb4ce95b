package scheduler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry-ci/gantry/agent"
)

func builderConfig() *Config {
	cfg := &Config{CIMasterURL: "http://ci.example.org"}
	cfg.normalize()
	return cfg
}

func TestBuildCommandTask(t *testing.T) {
	tb := newTaskBuilder(builderConfig())
	offer := newOffer("o1", 2, 650)

	task, err := tb.build(offer, agent.Spec{Name: "builder-1", CPUs: 0.2, MemMB: 512})
	require.NoError(t, err)

	assert.Equal(t, "task builder-1", task.GetName())
	assert.Equal(t, "builder-1", task.GetTaskId().GetValue())
	assert.Equal(t, "host-o1", task.GetSlaveId().GetValue())
	assert.Nil(t, task.Executor)
	assert.Nil(t, task.Data)

	resources := task.GetResources()
	require.Len(t, resources, 2)
	assert.Equal(t, "cpus", resources[0].GetName())
	assert.Equal(t, 0.2, resources[0].GetScalar().GetValue())
	assert.Equal(t, "mem", resources[1].GetName())
	assert.InDelta(t, 563.2, resources[1].GetScalar().GetValue(), 0.001)

	command := task.GetCommand().GetValue()
	assert.Contains(t, command, "-Xmx512m")
	assert.Contains(t, command,
		"-jnlpUrl http://ci.example.org/computer/builder-1/slave-agent.jnlp")

	uris := task.GetCommand().GetUris()
	require.Len(t, uris, 1)
	assert.Equal(t, "http://ci.example.org/jnlpJars/agent.jar", uris[0].GetValue())
}

func TestBuildCommandTaskHeapUsesRequestedMemory(t *testing.T) {
	tb := newTaskBuilder(builderConfig())
	offer := newOffer("o1", 4, 4096)

	// The heap flag carries the requested figure; only the reservation is
	// inflated. Fractions are truncated for the flag.
	task, err := tb.build(offer, agent.Spec{Name: "b", CPUs: 1, MemMB: 512.9})
	require.NoError(t, err)

	command := task.GetCommand().GetValue()
	assert.Contains(t, command, "-Xmx512m")
	assert.NotContains(t, command, "-Xmx563")
	assert.InDelta(t, 564.19, task.GetResources()[1].GetScalar().GetValue(), 0.01)
}

func TestBuildCommandTaskCustomFormat(t *testing.T) {
	cfg := &Config{
		CIMasterURL:   "http://ci.example.org/",
		CommandFormat: "run-agent --mem %d --url %s",
	}
	cfg.normalize()
	tb := newTaskBuilder(cfg)

	task, err := tb.build(newOffer("o1", 2, 650), agent.Spec{Name: "b", CPUs: 1, MemMB: 256})
	require.NoError(t, err)

	assert.Equal(t,
		"run-agent --mem 256 --url http://ci.example.org/computer/b/slave-agent.jnlp",
		task.GetCommand().GetValue())
}

func TestBuildContainerTask(t *testing.T) {
	cfg := builderConfig()
	cfg.Container = &ContainerConfig{
		Enabled:      true,
		Image:        "gantry/agent:latest",
		ExecutorPath: "/usr/local/bin/gantry-executor",
	}
	tb := newTaskBuilder(cfg)
	offer := newOffer("o1", 2, 650)

	task, err := tb.build(offer, agent.Spec{Name: "builder-1", CPUs: 0.2, MemMB: 512})
	require.NoError(t, err)

	assert.Equal(t, "task builder-1", task.GetName())
	assert.Nil(t, task.Command)

	executor := task.GetExecutor()
	require.NotNil(t, executor)
	assert.Equal(t, "executor_builder-1", executor.GetExecutorId().GetValue())
	assert.Equal(t, "gantry-framework", executor.GetFrameworkId().GetValue())
	assert.Equal(t,
		"exec /usr/local/bin/gantry-executor gantry/agent:latest",
		executor.GetCommand().GetValue())

	// The executor contract wants the task identifier leading the payload
	// document.
	assert.True(t, strings.HasPrefix(string(task.GetData()), `{"id":`))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(task.GetData(), &payload))
	assert.Equal(t, "task_builder-1", payload["id"])
	assert.Equal(t, "gantry/agent:latest", payload["cmd"])
	assert.Equal(t, float64(1), payload["instances"])
	assert.Equal(t, 0.2, payload["cpus"])
	assert.Equal(t, "/usr/local/bin/gantry-executor", payload["executor"])
	assert.Equal(t, float64(1), payload["taskRateLimit"])
	assert.Equal(t, []interface{}{}, payload["constraints"])
	assert.Equal(t, []interface{}{}, payload["uris"])
	assert.Equal(t, []interface{}{}, payload["ports"])

	mem, ok := payload["mem"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 563.2, mem, 0.001)

	env, ok := payload["env"].(map[string]interface{})
	require.True(t, ok)
	bootstrap, ok := env["AGENT_COMMAND"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(bootstrap,
		"wget -O agent.jar http://ci.example.org/jnlpJars/agent.jar && java "))
	assert.Contains(t, bootstrap,
		"-jnlpUrl http://ci.example.org/computer/builder-1/slave-agent.jnlp")
}

func TestBuildContainerTaskMissingImage(t *testing.T) {
	cfg := builderConfig()
	cfg.Container = &ContainerConfig{Enabled: true, ExecutorPath: "/usr/local/bin/gantry-executor"}
	tb := newTaskBuilder(cfg)

	_, err := tb.build(newOffer("o1", 2, 650), agent.Spec{Name: "b", CPUs: 1, MemMB: 256})
	assert.Equal(t, errNoContainerImage, err)
}

func TestBuildContainerTaskMissingExecutorPath(t *testing.T) {
	cfg := builderConfig()
	cfg.Container = &ContainerConfig{Enabled: true, Image: "gantry/agent:latest"}
	tb := newTaskBuilder(cfg)

	_, err := tb.build(newOffer("o1", 2, 650), agent.Spec{Name: "b", CPUs: 1, MemMB: 256})
	assert.Equal(t, errNoExecutorPath, err)
}

func TestBuildContainerDisabledUsesCommandVariant(t *testing.T) {
	cfg := builderConfig()
	cfg.Container = &ContainerConfig{Image: "gantry/agent:latest", ExecutorPath: "/x"}
	tb := newTaskBuilder(cfg)

	task, err := tb.build(newOffer("o1", 2, 650), agent.Spec{Name: "b", CPUs: 1, MemMB: 256})
	require.NoError(t, err)
	assert.Nil(t, task.Executor)
	assert.NotNil(t, task.Command)
}

func TestReservedMem(t *testing.T) {
	assert.InDelta(t, 563.2, reservedMem(512), 1e-9)
	assert.Equal(t, 0.0, reservedMem(0))
}

func TestJoinPaths(t *testing.T) {
	tests := []struct {
		prefix string
		suffix string
		want   string
	}{
		{"http://ci.example.org", "jnlpJars/agent.jar", "http://ci.example.org/jnlpJars/agent.jar"},
		{"http://ci.example.org/", "jnlpJars/agent.jar", "http://ci.example.org/jnlpJars/agent.jar"},
		{"http://ci.example.org", "/jnlpJars/agent.jar", "http://ci.example.org/jnlpJars/agent.jar"},
		{"http://ci.example.org/", "/jnlpJars/agent.jar", "http://ci.example.org/jnlpJars/agent.jar"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, joinPaths(tt.prefix, tt.suffix))
	}
}
