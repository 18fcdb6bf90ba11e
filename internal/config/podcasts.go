package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Podcast is one configured feed.
type Podcast struct {
	Name       string `yaml:"name" json:"name"`
	RSSURL     string `yaml:"rss_url" json:"rss_url"`
	FolderName string `yaml:"folder_name" json:"folder_name"`
	Enabled    *bool  `yaml:"enabled" json:"enabled"`
	KeepCount  *int   `yaml:"keep_count" json:"keep_count"`
}

// IsEnabled treats an absent flag as enabled.
func (p Podcast) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Settings are the pass-wide knobs of the podcasts document.
type Settings struct {
	CheckIntervalHours     int    `yaml:"check_interval_hours" json:"check_interval_hours"`
	MaxEpisodesPerCheck    int    `yaml:"max_episodes_per_check" json:"max_episodes_per_check"`
	RootFolder             string `yaml:"root_folder" json:"root_folder"`
	RequestTimeoutSeconds  int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
	TransferTimeoutSeconds int    `yaml:"transfer_timeout_seconds" json:"transfer_timeout_seconds"`
}

func (s Settings) CheckInterval() time.Duration {
	return time.Duration(s.CheckIntervalHours) * time.Hour
}

func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func (s Settings) TransferTimeout() time.Duration {
	return time.Duration(s.TransferTimeoutSeconds) * time.Second
}

// Document is the podcasts configuration file.
type Document struct {
	Podcasts []Podcast `yaml:"podcasts" json:"podcasts"`
	Settings Settings  `yaml:"settings" json:"settings"`
}

// DefaultSettings returns the settings used for any field left unset.
func DefaultSettings() Settings {
	return Settings{
		CheckIntervalHours:     6,
		MaxEpisodesPerCheck:    5,
		RootFolder:             "Podcasts",
		RequestTimeoutSeconds:  30,
		TransferTimeoutSeconds: 600,
	}
}

// EnabledPodcasts returns the podcasts that take part in a pass, in
// configuration order.
func (d *Document) EnabledPodcasts() []Podcast {
	var out []Podcast
	for _, p := range d.Podcasts {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// LoadPodcasts resolves the podcasts document: inline PODCASTS_CONFIG first,
// then the configured file, then the .json sibling of the default file.
func LoadPodcasts(env Env) (*Document, error) {
	if strings.TrimSpace(env.PodcastsConfig) != "" {
		doc, err := ParsePodcasts([]byte(env.PodcastsConfig))
		if err != nil {
			return nil, fmt.Errorf("parse PODCASTS_CONFIG: %w", err)
		}
		return doc, nil
	}

	path := env.PodcastsConfigFile
	if path == "" {
		path = DefaultPodcastsFile
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && strings.HasSuffix(path, ".yaml") {
		path = strings.TrimSuffix(path, ".yaml") + ".json"
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read podcasts config: %w", err)
	}

	doc, err := ParsePodcasts(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// ParsePodcasts decodes a JSON or YAML document, applies defaults and
// validates it.
func ParsePodcasts(data []byte) (*Document, error) {
	var doc Document
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	doc.normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) normalize() {
	defaults := DefaultSettings()
	if d.Settings.CheckIntervalHours <= 0 {
		d.Settings.CheckIntervalHours = defaults.CheckIntervalHours
	}
	if d.Settings.MaxEpisodesPerCheck <= 0 {
		d.Settings.MaxEpisodesPerCheck = defaults.MaxEpisodesPerCheck
	}
	if strings.TrimSpace(d.Settings.RootFolder) == "" {
		d.Settings.RootFolder = defaults.RootFolder
	}
	if d.Settings.RequestTimeoutSeconds <= 0 {
		d.Settings.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	if d.Settings.TransferTimeoutSeconds <= 0 {
		d.Settings.TransferTimeoutSeconds = defaults.TransferTimeoutSeconds
	}

	for i := range d.Podcasts {
		p := &d.Podcasts[i]
		p.Name = strings.TrimSpace(p.Name)
		p.RSSURL = strings.TrimSpace(p.RSSURL)
		p.FolderName = strings.TrimSpace(p.FolderName)
		if p.FolderName == "" {
			p.FolderName = p.Name
		}
	}
}

// Validate reports the first invalid podcast entry.
func (d *Document) Validate() error {
	if !validFolderName(d.Settings.RootFolder) {
		return fmt.Errorf("settings: invalid root_folder %q", d.Settings.RootFolder)
	}
	seen := make(map[string]struct{}, len(d.Podcasts))
	for i, p := range d.Podcasts {
		if p.Name == "" {
			return fmt.Errorf("podcast %d: name is required", i)
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("podcast %q: duplicate name", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.RSSURL == "" {
			return fmt.Errorf("podcast %q: rss_url is required", p.Name)
		}
		if !validFolderName(p.FolderName) {
			return fmt.Errorf("podcast %q: invalid folder_name %q", p.Name, p.FolderName)
		}
		if p.KeepCount != nil && (*p.KeepCount == 0 || *p.KeepCount < -1) {
			return fmt.Errorf("podcast %q: keep_count must be -1 or positive, got %d", p.Name, *p.KeepCount)
		}
	}
	return nil
}

// validFolderName rejects names that would leave the parent folder.
func validFolderName(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if segment == "." || segment == ".." {
			return false
		}
	}
	return true
}
