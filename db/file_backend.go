package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const policyFileExt = ".yaml"

//FileBackend keeps one yaml document per guild in a directory
type FileBackend struct {
	dir string
}

//NewFileBackend creates the directory if needed and returns a backend writing into it
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create policy directory %v: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

//LoadPolicies reads every policy file in the directory. Files which fail to parse abort the load rather than
//being silently discarded, since the next save would otherwise overwrite them.
func (f *FileBackend) LoadPolicies(_ context.Context) ([]*guildmodels.GuildPolicy, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy directory %v: %w", f.dir, err)
	}
	var policies []*guildmodels.GuildPolicy
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, ".tmp") {
			//Leftover from an interrupted save, the real file is still intact
			logrus.Warnf("Removing stale temporary policy file %v", name)
			_ = os.Remove(filepath.Join(f.dir, name))
			continue
		}
		if filepath.Ext(name) != policyFileExt {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %v: %w", name, err)
		}
		var p guildmodels.GuildPolicy
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to parse policy file %v: %w", name, err)
		}
		if p.GuildID == "" {
			p.GuildID = strings.TrimSuffix(name, policyFileExt)
		}
		policies = append(policies, &p)
	}
	return policies, nil
}

//SavePolicy writes the policy to a temporary file, syncs it, then renames it over the existing file
func (f *FileBackend) SavePolicy(_ context.Context, policy *guildmodels.GuildPolicy) error {
	if err := guildmodels.ValidateID("guild", policy.GuildID); err != nil {
		return err
	}
	raw, err := yaml.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, policy.GuildID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary policy file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write policy file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync policy file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close policy file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(policy.GuildID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace policy file: %w", err)
	}
	return nil
}

//Close is a no-op, files are closed after every write
func (f *FileBackend) Close() error {
	return nil
}

func (f *FileBackend) path(guildID string) string {
	return filepath.Join(f.dir, guildID+policyFileExt)
}
