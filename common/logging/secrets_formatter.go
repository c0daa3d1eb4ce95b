package logging

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

const _redacted = "REDACTED"

// Fields whose values never belong in a log line, regardless of content.
var _secretFieldFragments = []string{"secret", "password", "credential"}

// SecretsFormatter scrubs framework credentials from log entries and formats
// them as parsable JSON. Field values under secret-like keys are dropped
// wholesale; any other string value containing one of the known secrets has
// the secret replaced.
type SecretsFormatter struct {
	*log.JSONFormatter

	secrets []string
}

// NewSecretsFormatter wraps the given JSON formatter. The secrets are the
// literal credential values loaded at startup, such as the framework
// authentication secret.
func NewSecretsFormatter(base *log.JSONFormatter, secrets ...string) *SecretsFormatter {
	f := &SecretsFormatter{JSONFormatter: base}
	for _, s := range secrets {
		if s != "" {
			f.secrets = append(f.secrets, s)
		}
	}
	return f
}

// Format is called by logrus and returns the formatted string.
func (f *SecretsFormatter) Format(entry *log.Entry) ([]byte, error) {
	for k, v := range entry.Data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if isSecretField(k) {
			entry.Data[k] = _redacted
			continue
		}
		entry.Data[k] = f.scrub(s)
	}
	entry.Message = f.scrub(entry.Message)
	return f.JSONFormatter.Format(entry)
}

func (f *SecretsFormatter) scrub(s string) string {
	for _, secret := range f.secrets {
		s = strings.Replace(s, secret, _redacted, -1)
	}
	return s
}

func isSecretField(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range _secretFieldFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
