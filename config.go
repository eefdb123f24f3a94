package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"reflect"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/uplinkd/git-uplink/id"
	"github.com/uplinkd/git-uplink/project"
	"github.com/uplinkd/git-uplink/repository"
)

const (
	defaultBatchSize   = 1000
	defaultInterval    = 30 * time.Second
	defaultSyncTimeout = 2 * time.Minute
	defaultTokenTTL    = 10 * time.Minute
)

var (
	defaultStorePath = path.Join(os.TempDir(), "git-uplink", "state.db")

	configSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uplink_config_last_reload_successful",
		Help: "Whether the last configuration reload attempt was successful.",
	})
	configSuccessTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uplink_config_last_reload_success_timestamp_seconds",
		Help: "Timestamp of the last successful configuration reload.",
	})
)

// Config is the daemon's YAML config file.
type Config struct {
	Defaults DefaultConfig   `yaml:"defaults"`
	Projects []ProjectConfig `yaml:"projects"`
}

// DefaultConfig holds daemon-wide settings.
type DefaultConfig struct {
	StorePath   string        `yaml:"store_path"`
	BatchSize   int           `yaml:"batch_size"`
	Interval    time.Duration `yaml:"interval"`
	SyncTimeout time.Duration `yaml:"sync_timeout"`
	Auth        AuthConfig    `yaml:"auth"`
}

// AuthConfig configures the push-token signer. An empty private key path
// means pushes are unauthenticated.
type AuthConfig struct {
	Issuer         string        `yaml:"issuer"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// ProjectConfig declares one local repository to replicate.
type ProjectConfig struct {
	ID         string `yaml:"id"`
	RepoPath   string `yaml:"repo_path"`
	CodeGitURL string `yaml:"code_git_url"`
	Disabled   bool   `yaml:"disabled"`
}

// WatchConfig polls the config file every interval and reloads if modified
func WatchConfig(ctx context.Context, path string, watchConfig bool, interval time.Duration, onChange func(*Config) bool) {
	var lastModTime time.Time
	var success bool

	for {
		lastModTime, success = loadConfig(path, lastModTime, onChange)
		if success {
			configSuccess.Set(1)
			configSuccessTime.SetToCurrentTime()
		} else {
			configSuccess.Set(0)
		}

		if !watchConfig {
			return
		}

		t := time.NewTimer(interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig(path string, lastModTime time.Time, onChange func(*Config) bool) (time.Time, bool) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		logger.Error("Error checking config file", "err", err)
		return lastModTime, false
	}

	modTime := fileInfo.ModTime()
	if modTime.Equal(lastModTime) {
		return lastModTime, true
	}

	logger.Info("reloading config file...")

	newConfig, err := parseConfigFile(path)
	if err != nil {
		logger.Error("failed to reload config", "err", err)
		return lastModTime, false
	}
	return modTime, onChange(newConfig)
}

// ensureProjects will do the diff between current store state and new
// config and based on that diff it will seed new projects, update changed
// ones and disable projects removed from the config.
func ensureProjects(store project.Store, newConfig *Config) bool {
	success := true

	applyDefaults(newConfig)

	if err := validateProjects(newConfig); err != nil {
		logger.Error("failed to validate new config", "err", err)
		return false
	}

	changedProjects, removedIDs, err := diffProjects(store, newConfig)
	if err != nil {
		logger.Error("failed to diff projects against store", "err", err)
		return false
	}

	disabled := false
	for _, pid := range removedIDs {
		if err := store.Update(project.UpdateRequest{ID: pid, SyncEnabled: &disabled}); err != nil {
			logger.Error("failed to disable removed project", "project", pid, "err", err)
			success = false
		}
	}
	for _, p := range changedProjects {
		if err := store.Upsert(&p); err != nil {
			logger.Error("failed to seed project", "project", p.ID, "err", err)
			success = false
		}
	}

	return success
}

func applyDefaults(conf *Config) {
	if conf.Defaults.StorePath == "" {
		conf.Defaults.StorePath = defaultStorePath
	}

	if conf.Defaults.BatchSize == 0 {
		conf.Defaults.BatchSize = defaultBatchSize
	}

	if conf.Defaults.Interval == 0 {
		conf.Defaults.Interval = defaultInterval
	}

	if conf.Defaults.SyncTimeout == 0 {
		conf.Defaults.SyncTimeout = defaultSyncTimeout
	}

	if conf.Defaults.Auth.TokenTTL == 0 {
		conf.Defaults.Auth.TokenTTL = defaultTokenTTL
	}
}

func parseConfigFile(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = validateConfigKeys(yamlFile)
	if err != nil {
		return nil, err
	}

	conf := &Config{}
	err = yaml.Unmarshal(yamlFile, conf)
	if err != nil {
		return nil, err
	}

	return conf, nil
}

func validateConfigKeys(yamlData []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	// defaults and projects sections are mandatory
	if _, ok := raw["defaults"]; !ok {
		return fmt.Errorf("defaults config section is missing")
	}

	if _, ok := raw["projects"]; !ok {
		return fmt.Errorf("projects config section is missing")
	}

	// check config sections for unexpected keys
	allowedConfig := getAllowedKeys(Config{})
	if key := findUnexpectedKey(raw, allowedConfig); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	// check "defaults" section
	defaultsMap, ok := raw["defaults"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("defaults section is missing or not valid")
	}
	allowedDefaults := getAllowedKeys(DefaultConfig{})

	if key := findUnexpectedKey(defaultsMap, allowedDefaults); key != "" {
		return fmt.Errorf("unexpected key: .defaults.%v", key)
	}

	// check "auth" section in "defaults"
	if authMap, ok := defaultsMap["auth"].(map[string]interface{}); ok {
		allowedAuthKeys := getAllowedKeys(AuthConfig{})
		if key := findUnexpectedKey(authMap, allowedAuthKeys); key != "" {
			return fmt.Errorf("unexpected key: .defaults.auth.%v", key)
		}
	}

	// check each project in "projects" section
	allowedProjectKeys := getAllowedKeys(ProjectConfig{})
	projectsList, ok := raw["projects"].([]interface{})
	if !ok {
		return fmt.Errorf("projects config section is not valid")
	}
	for _, projectInterface := range projectsList {
		projectMap, ok := projectInterface.(map[string]interface{})
		if !ok {
			return fmt.Errorf("projects config section is not valid")
		}

		if key := findUnexpectedKey(projectMap, allowedProjectKeys); key != "" {
			return fmt.Errorf("unexpected key: .projects[%v].%v", projectMap["id"], key)
		}
	}

	return nil
}

// validateProjects checks the semantic validity of every declared project.
func validateProjects(conf *Config) error {
	seen := map[project.ID]string{}
	for _, pc := range conf.Projects {
		pid, err := id.Parse[project.Project](pc.ID)
		if err != nil {
			return fmt.Errorf("invalid project id %q err:%w", pc.ID, err)
		}
		if prev, ok := seen[pid]; ok {
			return fmt.Errorf("duplicate project id %q (also used by %q)", pc.ID, prev)
		}
		seen[pid] = pc.RepoPath

		if pc.RepoPath == "" {
			return fmt.Errorf("project %q has no repo_path", pc.ID)
		}
		if pc.CodeGitURL != "" {
			if err := repository.ValidateRemoteURL(pc.CodeGitURL); err != nil {
				return fmt.Errorf("project %q err:%w", pc.ID, err)
			}
		}
	}
	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct
func getAllowedKeys(config interface{}) []string {
	var allowedKeys []string
	val := reflect.ValueOf(config)
	typ := reflect.TypeOf(config)

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag != "" {
			allowedKeys = append(allowedKeys, yamlTag)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw interface{}, allowedKeys []string) string {
	for key := range raw.(map[string]interface{}) {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}

	return ""
}

// diffProjects will do the diff between current store state and new config
// and return the projects to seed and the ids of stored projects which are
// not found in config
func diffProjects(store project.Store, newConfig *Config) (
	changedProjects []project.Project,
	removedIDs []project.ID,
	err error,
) {
	stored, err := store.List()
	if err != nil {
		return nil, nil, err
	}

	current := map[project.ID]project.Project{}
	for _, p := range stored {
		current[p.ID] = p
	}

	declared := map[project.ID]bool{}
	for _, pc := range newConfig.Projects {
		pid, err := id.Parse[project.Project](pc.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid project id %q err:%w", pc.ID, err)
		}
		declared[pid] = true

		want := project.Project{
			ID:          pid,
			RepoPath:    pc.RepoPath,
			CodeGitURL:  pc.CodeGitURL,
			SyncEnabled: !pc.Disabled,
		}

		got, ok := current[pid]
		if !ok ||
			got.RepoPath != want.RepoPath ||
			got.CodeGitURL != want.CodeGitURL ||
			got.SyncEnabled != want.SyncEnabled {
			changedProjects = append(changedProjects, want)
		}
	}

	for _, p := range stored {
		if !declared[p.ID] && p.SyncEnabled {
			removedIDs = append(removedIDs, p.ID)
		}
	}

	return changedProjects, removedIDs, nil
}
