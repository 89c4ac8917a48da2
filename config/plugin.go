package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// PluginHeader holds the fields of a WordPress plugin file header.
type PluginHeader struct {
	File       string
	Name       string
	Version    string
	PluginURI  string
	TextDomain string
	DomainPath string
}

// WordPress only reads the first 8 KiB of a file for its header.
const headerReadLimit = 8 * 1024

var pluginFieldRe = regexp.MustCompile(`(?mi)^[ \t/*#@]*(Plugin Name|Version|Plugin URI|Text Domain|Domain Path):[ \t]*(.*?)[ \t]*(?:\*/)?[ \t]*\r?$`)

// DetectPlugin finds the main plugin file directly inside dir (the first
// .php file, in name order, that declares "Plugin Name:") and returns
// its header. os.ErrNotExist is returned when no file declares one.
func DetectPlugin(fs afero.Fs, dir string) (*PluginHeader, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.IsDir() || !strings.EqualFold(filepath.Ext(info.Name()), ".php") {
			continue
		}
		path := filepath.Join(dir, info.Name())
		h, err := readPluginHeader(fs, path)
		if err != nil {
			return nil, err
		}
		if h.Name != "" {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no plugin header in %s: %w", dir, os.ErrNotExist)
}

func readPluginHeader(fs afero.Fs, path string) (*PluginHeader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, headerReadLimit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	h := &PluginHeader{File: path}
	for _, m := range pluginFieldRe.FindAllStringSubmatch(string(data), -1) {
		value := m[2]
		switch strings.ToLower(m[1]) {
		case "plugin name":
			setOnce(&h.Name, value)
		case "version":
			setOnce(&h.Version, value)
		case "plugin uri":
			setOnce(&h.PluginURI, value)
		case "text domain":
			setOnce(&h.TextDomain, value)
		case "domain path":
			setOnce(&h.DomainPath, value)
		}
	}
	return h, nil
}

func setOnce(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// ResolveProject fills missing project details from the plugin header
// found in the plugin root. The configured values always win; the
// domain and DefaultVersion are the last resort.
func (c *Config) ResolveProject(fs afero.Fs, projectRoot string) (Project, *PluginHeader) {
	p := c.Project
	h, err := DetectPlugin(fs, c.PluginPath(projectRoot))
	if err != nil {
		h = nil
	}
	if h != nil {
		if p.Name == "" {
			p.Name = h.Name
		}
		if p.Version == "" {
			p.Version = h.Version
		}
		if p.Bugs == "" {
			p.Bugs = h.PluginURI
		}
	}
	if p.Name == "" {
		p.Name = c.Domain
	}
	if p.Version == "" {
		p.Version = DefaultVersion
	}
	return p, h
}
