package models

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const achievementsFile = "achievements.yaml"

// AchievementBook keeps cosmetic achievements in a YAML file under dir.
// It is best effort: nothing in gameplay reads from it.
type AchievementBook struct {
	dir string

	mu    sync.Mutex
	items []Achievement
}

type achievementsDoc struct {
	Achievements []Achievement `yaml:"achievements"`
}

// OpenAchievements loads the book stored in dir. A missing file yields an empty book.
func OpenAchievements(dir string) (*AchievementBook, error) {
	b := &AchievementBook{dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, achievementsFile))
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	var doc achievementsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return b, err
	}
	b.items = doc.Achievements
	return b, nil
}

// Has reports whether name was already unlocked.
func (b *AchievementBook) Has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexOf(name) >= 0
}

// Unlock records name once. It returns false if name was already present.
func (b *AchievementBook) Unlock(name string, at time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(name) >= 0 {
		return false, nil
	}
	b.items = append(b.items, Achievement{Name: name, UnlockedAt: at})
	return true, b.save()
}

// List returns a copy of all achievements in unlock order.
func (b *AchievementBook) List() []Achievement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Achievement, len(b.items))
	copy(out, b.items)
	return out
}

func (b *AchievementBook) indexOf(name string) int {
	for i, a := range b.items {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (b *AchievementBook) save() error {
	if b.dir == "" {
		return nil
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(achievementsDoc{Achievements: b.items})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.dir, achievementsFile), data, 0644)
}
