package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ConfigPathEnv names the environment variable that points at the config file.
const ConfigPathEnv = "PDFLOAD_CONFIG_PATH"

// LoadConfigArgs reads the pdfload config file and returns parsed arguments.
// Config file location: PDFLOAD_CONFIG_PATH env var, or ~/.pdfload.
// Format: one global flag per line (--flag=value), # comments, empty lines ignored.
// Returns nil if no config file found.
func LoadConfigArgs() []string {
	path := os.Getenv(ConfigPathEnv)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".pdfload")
	}
	return readConfigArgs(path)
}

func readConfigArgs(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var args []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args = append(args, line)
	}
	return args
}
