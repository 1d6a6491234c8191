package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
)

// PromptsConfig contains the digest templates loaded from YAML
type PromptsConfig struct {
	System    string                    `yaml:"system"`
	Templates map[string]DigestTemplate `yaml:"templates"`
	// MaxMessages caps how many of the newest retained messages go into one prompt
	MaxMessages int `yaml:"max_messages"`
}

// DigestTemplate is one named digest prompt. Template may reference
// {{messages}}, {{group_name}} and {{now}}.
type DigestTemplate struct {
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, string, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/group-bridge/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, "", fmt.Errorf("failed to read prompts file %s", configPath)
		}
		return DefaultPromptsConfig(), "", nil
	}

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}

	config.fillDefaults()
	return &config, loadedPath, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.System == "" {
		c.System = defaults.System
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = defaults.MaxMessages
	}
	if c.Templates == nil {
		c.Templates = make(map[string]DigestTemplate)
	}
	for name, tpl := range defaults.Templates {
		if _, ok := c.Templates[name]; !ok {
			c.Templates[name] = tpl
		}
	}
}

// ToDigestConfig converts to the digest usecase configuration
func (c *PromptsConfig) ToDigestConfig() usecase.DigestConfig {
	templates := make(map[string]string, len(c.Templates))
	for name, tpl := range c.Templates {
		templates[name] = tpl.Template
	}
	return usecase.DigestConfig{
		SystemPrompt: c.System,
		Templates:    templates,
		MaxMessages:  c.MaxMessages,
	}
}

// DefaultPromptsConfig returns the built-in digest templates
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		System:      "You read a family group chat export and extract what matters. Answer in the language of the chat.",
		MaxMessages: 50,
		Templates: map[string]DigestTemplate{
			"general": {
				Description: "Short summary of the conversation",
				Template: `Summarize the following messages from "{{group_name}}".
Keep who said what important things, decisions and open questions. Under 200 words.

Current time: {{now}}

Messages:
{{messages}}`,
			},
			"todo": {
				Description: "Action items mentioned in the conversation",
				Template: `List the tasks, requests and errands mentioned in "{{group_name}}".
One line per task with the person responsible when known. Reply "none" if there are no tasks.

Current time: {{now}}

Messages:
{{messages}}`,
			},
			"calendar": {
				Description: "Dates, appointments and events",
				Template: `List every event, appointment or deadline mentioned in "{{group_name}}"
with its date and time resolved against the current time. Reply "none" if there are none.

Current time: {{now}}

Messages:
{{messages}}`,
			},
		},
	}
}
