// Package credstore persists the NEX endpoint and bearer token between
// runs. The stream session only reads from it, apart from clearing the
// token on logout.
package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/XDukeHD/nex-client/internal/client"
	"github.com/XDukeHD/nex-client/internal/config"
)

const credFileName = "credentials.yaml"

// Store is the credential store contract.
type Store interface {
	// Endpoint returns the saved endpoint, or nil if none.
	Endpoint() *client.Endpoint
	// Credentials returns the saved bearer token, or nil if none.
	Credentials() *client.Credentials
	SaveEndpoint(ep client.Endpoint) error
	SaveToken(token string) error
	// ClearToken forgets the bearer token. The endpoint is kept.
	ClearToken() error
}

type fileData struct {
	Endpoint *client.Endpoint `yaml:"endpoint,omitempty"`
	Token    string           `yaml:"token,omitempty"`
}

// File is a Store backed by a YAML file readable only by the owner.
type File struct {
	mu   sync.Mutex
	dir  string
	data fileData
}

// Open loads the credential file in dir. A missing file yields an empty
// store. Pass an empty string to use config.Dir.
func Open(dir string) (*File, error) {
	if dir == "" {
		dir = config.Dir()
	}
	f := &File{dir: dir}

	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &f.data); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return f, nil
}

// Path returns the full path to the credential file.
func (f *File) Path() string {
	return filepath.Join(f.dir, credFileName)
}

func (f *File) Endpoint() *client.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data.Endpoint == nil {
		return nil
	}
	ep := *f.data.Endpoint
	return &ep
}

func (f *File) Credentials() *client.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data.Token == "" {
		return nil
	}
	return &client.Credentials{BearerToken: f.data.Token}
}

// SaveEndpoint validates and stores ep. Changing the endpoint drops any
// saved token, since it was issued by the previous server.
func (f *File) SaveEndpoint(ep client.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.data
	if next.Endpoint == nil || *next.Endpoint != ep {
		next.Token = ""
	}
	next.Endpoint = &ep
	return f.commitLocked(next)
}

func (f *File) SaveToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.data
	next.Token = token
	return f.commitLocked(next)
}

func (f *File) ClearToken() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data.Token == "" {
		return nil
	}
	next := f.data
	next.Token = ""
	return f.commitLocked(next)
}

// commitLocked writes next to disk using an atomic temp-file-then-rename
// and only then adopts it in memory.
func (f *File) commitLocked(next fileData) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("securing temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path()); err != nil {
		return fmt.Errorf("renaming credentials file: %w", err)
	}
	committed = true

	f.data = next
	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu       sync.Mutex
	endpoint *client.Endpoint
	token    string
}

// NewMemory returns a Memory store seeded with ep and token. A nil ep or
// empty token leaves that part unset.
func NewMemory(ep *client.Endpoint, token string) *Memory {
	m := &Memory{token: token}
	if ep != nil {
		cp := *ep
		m.endpoint = &cp
	}
	return m
}

func (m *Memory) Endpoint() *client.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == nil {
		return nil
	}
	ep := *m.endpoint
	return &ep
}

func (m *Memory) Credentials() *client.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return nil
	}
	return &client.Credentials{BearerToken: m.token}
}

func (m *Memory) SaveEndpoint(ep client.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == nil || *m.endpoint != ep {
		m.token = ""
	}
	m.endpoint = &ep
	return nil
}

func (m *Memory) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
