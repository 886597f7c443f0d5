package cmd

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/nanovms/docker2eif/constants"
	"github.com/nanovms/docker2eif/types"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// ConfigCommandFlags handles config file path flag and build configuration from the file
type ConfigCommandFlags struct {
	Config string
}

// MergeToConfig reads a json configuration file. Without --config the file
// named by DOCKER2EIF_DEFAULT_CONFIG is read, then ~/.docker2eifrc if it
// exists.
func (flags *ConfigCommandFlags) MergeToConfig(c *types.Config) error {
	if c == nil {
		return errors.New("missing configuration")
	}

	if flags.Config != "" {
		return readConfigFile(flags.Config, c)
	}

	if conf := os.Getenv(constants.DefaultConfigEnv); conf != "" {
		return readConfigFile(conf, c)
	}

	usr, err := user.Current()
	if err != nil {
		return nil
	}
	conf := filepath.Join(usr.HomeDir, constants.RCFile)
	if _, err := os.Stat(conf); err != nil {
		return nil
	}
	return readConfigFile(conf, c)
}

func readConfigFile(file string, c *types.Config) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "error reading config")
	}

	if err := json.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "error config %s", file)
	}

	return nil
}

// NewConfigCommandFlags returns an instance of ConfigCommandFlags
func NewConfigCommandFlags(cmdFlags *pflag.FlagSet) (flags *ConfigCommandFlags) {
	flags = &ConfigCommandFlags{}

	flags.Config, _ = cmdFlags.GetString("config")
	flags.Config = strings.TrimSpace(flags.Config)

	return
}

// PersistConfigCommandFlags append a command the config file flag
func PersistConfigCommandFlags(cmdFlags *pflag.FlagSet) {
	cmdFlags.String("config", "", "docker2eif config file")
}
