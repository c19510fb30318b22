package certstore

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AccountRecord is the persisted ACME account registration, reused across
// renewals so the CA sees one account per directory+contact combination.
type AccountRecord struct {
	URI          string    `json:"uri"`
	Contact      string    `json:"contact"`
	DirectoryURL string    `json:"directory_url"`
	TermsAgreed  bool      `json:"terms_agreed"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists ACME account registrations and issued certificate/key pairs
// on disk for restart continuity. All writes go through a temp file and an
// atomic rename so a crash never leaves a torn artifact.
type Store struct {
	dir string
}

// NewStore creates the storage directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, ErrEmptyStoreDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory path.
func (s *Store) Dir() string {
	return s.dir
}

// SaveAccount persists the account record and its private key for a directory.
func (s *Store) SaveAccount(rec AccountRecord, keyPEM []byte) error {
	if rec.DirectoryURL == "" {
		return ErrEmptyDirectoryURL
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account record: %w", err)
	}

	base := accountFileBase(rec.DirectoryURL)
	if err := s.writeFile(base+".account.json", data, 0o600); err != nil {
		return err
	}
	return s.writeFile(base+".account.key", keyPEM, 0o600)
}

// LoadAccount reads a previously saved account for the directory.
// Returns ErrAccountNotFound when none exists.
func (s *Store) LoadAccount(directoryURL string) (*AccountRecord, []byte, error) {
	base := accountFileBase(directoryURL)

	data, err := os.ReadFile(filepath.Join(s.dir, base+".account.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("read account record: %w", err)
	}

	var rec AccountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode account record: %w", err)
	}

	keyPEM, err := os.ReadFile(filepath.Join(s.dir, base+".account.key"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("read account key: %w", err)
	}

	return &rec, keyPEM, nil
}

// SaveCertificate persists an issued certificate chain and private key for a
// domain set.
func (s *Store) SaveCertificate(domains []string, certPEM, keyPEM []byte) error {
	base, err := domainSetBase(domains)
	if err != nil {
		return err
	}
	if err := s.writeFile(base+".key", keyPEM, 0o600); err != nil {
		return err
	}
	return s.writeFile(base+".crt", certPEM, 0o600)
}

// LoadCertificate reads the cached certificate for a domain set.
// Returns ErrCertificateNotFound when none exists.
func (s *Store) LoadCertificate(domains []string) (*CertifiedKey, error) {
	base, err := domainSetBase(domains)
	if err != nil {
		return nil, err
	}

	certPEM, err := os.ReadFile(filepath.Join(s.dir, base+".crt"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCertificateNotFound
		}
		return nil, fmt.Errorf("read certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(filepath.Join(s.dir, base+".key"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCertificateNotFound
		}
		return nil, fmt.Errorf("read private key: %w", err)
	}

	return NewCertifiedKey(certPEM, keyPEM)
}

// HasCertificate reports whether a cached certificate exists for a domain set.
func (s *Store) HasCertificate(domains []string) bool {
	base, err := domainSetBase(domains)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(s.dir, base+".crt"))
	return err == nil
}

// DeleteCertificate removes the cached certificate for a domain set.
func (s *Store) DeleteCertificate(domains []string) error {
	base, err := domainSetBase(domains)
	if err != nil {
		return err
	}
	for _, name := range []string{base + ".crt", base + ".key"} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) writeFile(name string, data []byte, perm os.FileMode) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// domainSetBase derives a stable filename base from a domain set, independent
// of domain ordering.
func domainSetBase(domains []string) (string, error) {
	if len(domains) == 0 {
		return "", ErrNoDomains
	}

	set := make([]string, 0, len(domains))
	for _, d := range domains {
		d = normalizeHost(d)
		if d != "" {
			set = append(set, d)
		}
	}
	if len(set) == 0 {
		return "", ErrNoDomains
	}
	sort.Strings(set)

	return safeFileSegment(strings.Join(set, "+")), nil
}

func accountFileBase(directoryURL string) string {
	if u, err := url.Parse(directoryURL); err == nil && u.Host != "" {
		return safeFileSegment(u.Host)
	}
	return safeFileSegment(directoryURL)
}

func safeFileSegment(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "certificate"
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == '+':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := strings.Trim(b.String(), "._-")
	if sanitized == "" {
		return "certificate"
	}
	return sanitized
}
