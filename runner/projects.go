package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScript is the deployment script looked up in a project directory.
const DefaultScript = "deploy.sh"

var (
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrMissingProjectPath = errors.New("project path is required")
	ErrPathEscapesHome    = errors.New("project path escapes the home directory")
	ErrProjectNotFound    = errors.New("project not found")
)

var projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Project is a deployable project.
type Project struct {
	Name        string `yaml:"name" json:"name"`
	Path        string `yaml:"path" json:"path"`
	Script      string `yaml:"script,omitempty" json:"script,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ProjectsConfig holds the optional list of known projects.
type ProjectsConfig struct {
	Projects []Project `yaml:"projects" json:"projects"`
}

// LoadProjects loads the projects configuration from a YAML file
func LoadProjects(configPath string) (*ProjectsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects config: %w", err)
	}

	var config ProjectsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse projects config: %w", err)
	}

	for _, p := range config.Projects {
		if err := ValidateProjectName(p.Name); err != nil {
			return nil, fmt.Errorf("failed to parse projects config: %w", err)
		}
	}

	return &config, nil
}

// GetProject returns a project by name
func (pc *ProjectsConfig) GetProject(name string) (*Project, error) {
	if pc == nil {
		return nil, fmt.Errorf("project '%s': %w", name, ErrProjectNotFound)
	}
	for _, project := range pc.Projects {
		if project.Name == name {
			return &project, nil
		}
	}
	return nil, fmt.Errorf("project '%s': %w", name, ErrProjectNotFound)
}

// ValidateProjectName rejects names that are unsafe as a path segment.
func ValidateProjectName(name string) error {
	if !projectNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}
	return nil
}

// Resolver turns webhook project identity into a Project rooted under Home.
type Resolver struct {
	Home          string
	Projects      *ProjectsConfig
	DefaultScript string
}

// Resolve validates name and relPath. An empty relPath falls back to the
// configured project path.
func (r Resolver) Resolve(name, relPath string) (Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return Project{}, err
	}

	project := Project{Name: name, Script: r.script()}
	if configured, err := r.Projects.GetProject(name); err == nil {
		if configured.Script != "" {
			project.Script = configured.Script
		}
		project.Description = configured.Description
		if strings.TrimSpace(relPath) == "" {
			relPath = configured.Path
		}
	}

	relPath = strings.TrimLeft(strings.TrimSpace(relPath), "/")
	if relPath == "" {
		return Project{}, ErrMissingProjectPath
	}

	home, err := filepath.Abs(r.Home)
	if err != nil {
		return Project{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	full := filepath.Join(home, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(home, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Project{}, fmt.Errorf("%w: %q", ErrPathEscapesHome, relPath)
	}
	project.Path = full

	if filepath.IsAbs(project.Script) || strings.Contains(project.Script, "..") {
		return Project{}, fmt.Errorf("invalid deployment script %q", project.Script)
	}
	return project, nil
}

func (r Resolver) script() string {
	if r.DefaultScript != "" {
		return r.DefaultScript
	}
	return DefaultScript
}
