package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Link struct {
	URL       string    `json:"url"`
	Source    string    `json:"source,omitempty"`
	Status    string    `json:"status"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// LinkStorage remembers which URLs a crawl has already claimed. With a
// filename it persists to disk so a later run skips completed links and
// retries the rest.
type LinkStorage struct {
	mu       sync.RWMutex
	links    map[string]*Link
	claimed  map[string]bool
	filename string
}

func NewLinkStorage(filename string) (*LinkStorage, error) {
	ls := &LinkStorage{
		links:    make(map[string]*Link),
		claimed:  make(map[string]bool),
		filename: filename,
	}

	if filename == "" {
		return ls, nil
	}

	if err := ls.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return ls, nil
}

// Claim marks url as being processed by this run. It reports false when the
// url was already claimed in this run or completed in an earlier one.
func (ls *LinkStorage) Claim(url, source string) (bool, error) {
	if url == "" {
		return false, fmt.Errorf("url is required")
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.claimed[url] {
		return false, nil
	}

	now := time.Now()
	link, exists := ls.links[url]
	if exists && link.Status == StatusCompleted {
		return false, nil
	}
	if !exists {
		link = &Link{URL: url, Source: source, AddedAt: now}
		ls.links[url] = link
	}

	link.Status = StatusProcessing
	link.UpdatedAt = now
	link.Error = ""
	ls.claimed[url] = true

	return true, ls.save()
}

func (ls *LinkStorage) Get(url string) (*Link, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	link, exists := ls.links[url]
	if !exists {
		return nil, false
	}
	cp := *link
	return &cp, true
}

// GetPending returns copies of every link not yet completed, in no
// particular order.
func (ls *LinkStorage) GetPending() []*Link {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	var pending []*Link
	for _, link := range ls.links {
		if link.Status != StatusCompleted {
			cp := *link
			pending = append(pending, &cp)
		}
	}
	return pending
}

func (ls *LinkStorage) UpdateStatus(url, status string, errorMsg string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	link, exists := ls.links[url]
	if !exists {
		return fmt.Errorf("link not found: %s", url)
	}

	link.Status = status
	link.UpdatedAt = time.Now()
	link.Error = errorMsg

	return ls.save()
}

func (ls *LinkStorage) GetStats() map[string]int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	stats := make(map[string]int)
	for _, link := range ls.links {
		stats[link.Status]++
	}
	stats["total"] = len(ls.links)
	return stats
}

func (ls *LinkStorage) save() error {
	if ls.filename == "" {
		return nil
	}

	data, err := json.MarshalIndent(ls.links, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := ls.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ls.filename)
}

func (ls *LinkStorage) Load() error {
	data, err := os.ReadFile(ls.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &ls.links)
}
