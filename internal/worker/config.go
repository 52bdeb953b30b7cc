package worker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/lambda-feedback/imapvisor/internal/worker/bridge"
	"github.com/lambda-feedback/imapvisor/internal/worker/process"
	"github.com/lambda-feedback/imapvisor/internal/worker/schema"
	"github.com/lambda-feedback/imapvisor/util/conf"
)

var (
	ErrUnknownKind   = errors.New("unknown worker kind")
	ErrInvalidConfig = errors.New("invalid worker config")
)

type Kind string

const (
	// KindBridge forwards mail from an IMAP mailbox to an SMTP server
	KindBridge Kind = "bridge"

	// KindProcess runs an external command
	KindProcess Kind = "exec"
)

type Config struct {
	// Kind selects the worker implementation
	Kind Kind `conf:"kind"`

	// Bridge is the config of a bridge worker
	Bridge bridge.Config `conf:",squash"`

	// Process is the config of an exec worker
	Process process.Config `conf:",squash"`
}

func defaults() conf.DefaultConfig {
	d := conf.DefaultConfig{
		"kind":                 string(KindBridge),
		"poll_interval":        bridge.DefaultConfig.PollInterval.String(),
		"delete_after_forward": bridge.DefaultConfig.DeleteAfterForward,
		"max_conns":            bridge.DefaultConfig.MaxConns,
	}

	imap := conf.MergeDefaults("imap", map[string]any{
		"port":    bridge.DefaultConfig.IMAP.Port,
		"tls":     bridge.DefaultConfig.IMAP.TLS,
		"mailbox": bridge.DefaultConfig.IMAP.Mailbox,
	})

	smtp := conf.MergeDefaults("smtp", map[string]any{
		"port":     bridge.DefaultConfig.SMTP.Port,
		"starttls": bridge.DefaultConfig.SMTP.StartTLS,
	})

	for _, m := range []map[string]any{imap, smtp} {
		for k, v := range m {
			d[k] = v
		}
	}

	return d
}

// LoadConfig reads the yaml worker config at path, applies defaults and
// validates it against the worker config schema.
func LoadConfig(path string) (Config, error) {
	var config Config

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return config, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return config, fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := validate(k.Raw()); err != nil {
		return config, err
	}

	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "conf"}); err != nil {
		return config, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return config, nil
}

func validate(data map[string]any) error {
	result, err := schema.Validate(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
