package scheduler

const (
	// Fraction of memory reserved on top of the requested heap so the JVM
	// process fits inside its Mesos reservation.
	_memOverheadFactor = 0.1

	// The launch command receives the heap size in MB and the connect URL.
	// The jar name it runs must be the filename the agent jar path ends
	// in, since the containerized bootstrap fetches the jar under that
	// name.
	_defaultCommandFormat = "java -server -Xmx%dm -Xms16m -XX:+UseConcMarkSweepGC " +
		"-Djava.net.preferIPv4Stack=true -jar agent.jar -jnlpUrl %s"

	_defaultAgentJarPath      = "jnlpJars/agent.jar"
	_defaultConnectPathFormat = "computer/%s/slave-agent.jnlp"

	// Declined remainders of a launch offer may be re-offered after this
	// many seconds.
	_defaultRefusalSeconds = 1.0
)

// Config is the scheduler specific configuration.
type Config struct {
	// CIMasterURL is the base URL of the CI master launched agents call
	// back into. It also serves the agent jar.
	CIMasterURL string `yaml:"ci_master_url" validate:"nonzero"`

	// CommandFormat overrides the JVM launch command template. It is
	// given the heap size in MB and the agent connect URL, in that order.
	CommandFormat string `yaml:"command_format"`

	// AgentJarPath is the path below CIMasterURL serving the agent jar.
	AgentJarPath string `yaml:"agent_jar_path"`

	// ConnectPathFormat is the path template below CIMasterURL an agent
	// fetches its connection descriptor from; given the agent name.
	ConnectPathFormat string `yaml:"connect_path_format"`

	// RefusalSeconds is the offer refusal filter attached to launches so
	// the unused remainder of a host is re-offered quickly.
	RefusalSeconds float64 `yaml:"refusal_seconds"`

	// DefaultAgentAttributes applies to requests that carry no attribute
	// requirements of their own.
	DefaultAgentAttributes map[string]string `yaml:"default_agent_attributes"`

	// Container switches launches to the containerized executor variant.
	Container *ContainerConfig `yaml:"container"`
}

// ContainerConfig for the containerized launch variant.
type ContainerConfig struct {
	Enabled bool `yaml:"enabled"`

	// Image is the container image the agent runs in.
	Image string `yaml:"image"`

	// ExecutorPath is the on-host path of the container executor binary
	// the task delegates to.
	ExecutorPath string `yaml:"executor_path"`
}

func (c *Config) normalize() {
	if c.CommandFormat == "" {
		c.CommandFormat = _defaultCommandFormat
	}
	if c.AgentJarPath == "" {
		c.AgentJarPath = _defaultAgentJarPath
	}
	if c.ConnectPathFormat == "" {
		c.ConnectPathFormat = _defaultConnectPathFormat
	}
	if c.RefusalSeconds <= 0 {
		c.RefusalSeconds = _defaultRefusalSeconds
	}
}

func (c *Config) containerEnabled() bool {
	return c.Container != nil && c.Container.Enabled
}
