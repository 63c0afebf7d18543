// Package setup registers the mitopipe MCP server with Claude Desktop.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
)

// ServerName is the key mitopipe is registered under in mcpServers
const ServerName = "mito-cohort-pipeline"

// BinaryName is the executable looked up when no binary path is given
const BinaryName = "mitopipe"

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
// Keys other than mcpServers are preserved on save.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls how the MCP server entry is written
type Options struct {
	BinaryPath string            // resolved from PATH when empty
	ConfigFile string            // passed to "mitopipe --config"
	Env        map[string]string // e.g. MITO_ONTOLOGY_SOURCE
}

// Status reports whether mitopipe is registered and runnable
type Status struct {
	ConfigPath string
	Registered bool
	Command    string
	Args       []string
	Issues     []string
}

// ClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func ClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the configuration. A missing file yields an
// empty configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	config := &ClaudeDesktopConfig{MCPServers: make(map[string]MCPServerConfig)}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}

	return config, nil
}

// SaveClaudeDesktopConfig writes the configuration, creating its directory
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]interface{}, len(config.extra)+1)
	for key, value := range config.extra {
		doc[key] = value
	}
	doc["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the mitopipe entry in the config at configPath
func Register(configPath string, opts Options) (MCPServerConfig, error) {
	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		found, err := exec.LookPath(BinaryName)
		if err != nil {
			return MCPServerConfig{}, fmt.Errorf("could not find %s on PATH, pass the binary path explicitly: %w", BinaryName, err)
		}
		binaryPath = found
	}
	if abs, err := filepath.Abs(binaryPath); err == nil {
		binaryPath = abs
	}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return MCPServerConfig{}, err
	}

	entry := MCPServerConfig{Command: binaryPath}
	if opts.ConfigFile != "" {
		entry.Args = append(entry.Args, "--config", opts.ConfigFile)
	}
	entry.Args = append(entry.Args, "mcp")
	if len(opts.Env) > 0 {
		entry.Env = opts.Env
	}

	config.MCPServers[ServerName] = entry
	if err := SaveClaudeDesktopConfig(configPath, config); err != nil {
		return MCPServerConfig{}, err
	}
	return entry, nil
}

// Unregister removes the mitopipe entry. It reports whether one existed.
func Unregister(configPath string) (bool, error) {
	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := config.MCPServers[ServerName]; !ok {
		return false, nil
	}

	delete(config.MCPServers, ServerName)
	return true, SaveClaudeDesktopConfig(configPath, config)
}

// GetStatus inspects the config at configPath
func GetStatus(configPath string) (*Status, error) {
	status := &Status{ConfigPath: configPath, Issues: []string{}}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered in Claude Desktop", ServerName))
		return status, nil
	}

	status.Registered = true
	status.Command = entry.Command
	status.Args = entry.Args

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}

	for i, arg := range entry.Args {
		if arg == "--config" && i+1 < len(entry.Args) {
			if _, err := os.Stat(entry.Args[i+1]); err != nil {
				status.Issues = append(status.Issues, fmt.Sprintf("config file not found: %s", entry.Args[i+1]))
			}
		}
	}

	return status, nil
}

// RegisteredServers lists the mcpServers keys, sorted
func (c *ClaudeDesktopConfig) RegisteredServers() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
