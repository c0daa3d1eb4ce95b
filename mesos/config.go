package mesos

// Config for Mesos cluster specific configuration.
type Config struct {
	// Master is the Mesos master location, either a host:port pair or a
	// zk://host1:port1,host2:port2/mesos path for HA masters.
	Master    string           `yaml:"master" validate:"nonzero"`
	Framework *FrameworkConfig `yaml:"framework"`
}

// FrameworkConfig for framework registration specific configuration.
type FrameworkConfig struct {
	Name            string  `yaml:"name"`
	User            string  `yaml:"user"`
	Role            string  `yaml:"role"`
	Checkpoint      bool    `yaml:"checkpoint"`
	FailoverTimeout float64 `yaml:"failover_timeout"`
	Principal       string  `yaml:"principal"`
	// SecretFile holds the authentication secret for Principal. Read once
	// at driver construction; surrounding whitespace is trimmed.
	SecretFile string `yaml:"secret_file"`
	// BindingAddress pins the address the scheduler library listens on
	// for master callbacks. Empty lets the library choose.
	BindingAddress string `yaml:"binding_address"`
}

const (
	_defaultFrameworkName = "gantry"
	_defaultFrameworkUser = "root"
)

func (c *Config) normalize() {
	if c.Framework == nil {
		c.Framework = &FrameworkConfig{}
	}
	if c.Framework.Name == "" {
		c.Framework.Name = _defaultFrameworkName
	}
	if c.Framework.User == "" {
		c.Framework.User = _defaultFrameworkUser
	}
}
