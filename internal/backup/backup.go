// Package backup takes encrypted snapshots of the purchase database, keeps
// them in a local directory and optionally mirrors them to S3-compatible
// storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

const (
	filePrefix = "grocery-"
	fileSuffix = ".db.enc"
	timeLayout = "20060102T150405Z"
)

// ErrInProgress is returned when a backup is requested while one runs.
var ErrInProgress = errors.New("backup: already in progress")

// s3Client is the subset of the S3 API the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage settings. Upload is enabled only
// when Bucket, AccessKey and SecretKey are all set.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	Dir string
	S3  S3Config
}

// Info describes one stored backup.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Uploaded  bool      `json:"uploaded"`
}

type Manager struct {
	mu      sync.Mutex
	running bool

	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	if cfg.S3.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run snapshots the database, encrypts the snapshot with passphrase and
// writes it to the backup directory, uploading it when S3 is configured.
func (m *Manager) Run(ctx context.Context, passphrase string) (*Info, error) {
	if passphrase == "" {
		return nil, errors.New("backup: passphrase is required")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	created := m.now().UTC()
	name := filePrefix + created.Format(timeLayout) + fileSuffix

	plaintext, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(plaintext, passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	path := filepath.Join(m.cfg.Dir, name)
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	info := &Info{Name: name, Path: path, Size: int64(len(sealed)), CreatedAt: created}

	if m.client != nil {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(name),
			Body:          bytes.NewReader(sealed),
			ContentLength: aws.Int64(info.Size),
		})
		if err != nil {
			return info, fmt.Errorf("upload to s3: %w", err)
		}
		info.Uploaded = true
	}

	m.logger.Info("backup created", "name", name, "size", info.Size, "uploaded", info.Uploaded)
	return info, nil
}

// snapshot copies the live database into a consistent standalone file and
// returns its bytes.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "grocery-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	dst := filepath.Join(tmp, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// List returns the local backups, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		created, ok := parseName(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		backups = append(backups, Info{
			Name:      e.Name(),
			Path:      filepath.Join(m.cfg.Dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: created,
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	t, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Prune keeps the newest keep backups and deletes the rest, locally and
// from S3. It returns the names removed.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", b.Name, err)
		}
		removed = append(removed, b.Name)
		if m.client != nil {
			if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.S3.Bucket),
				Key:    aws.String(b.Name),
			}); err != nil {
				m.logger.Warn("delete remote backup failed", "name", b.Name, "error", err)
			}
		}
	}
	m.logger.Info("backups pruned", "removed", len(removed), "kept", keep)
	return removed, nil
}

// Fetch downloads a backup from S3 into the backup directory and returns
// its local path.
func (m *Manager) Fetch(ctx context.Context, name string) (string, error) {
	if m.client == nil {
		return "", errors.New("backup: s3 is not configured")
	}
	if _, ok := parseName(name); !ok {
		return "", fmt.Errorf("backup: invalid backup name %q", name)
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read s3 object: %w", err)
	}
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(m.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// Start runs a backup every interval, pruning to keep afterwards, until
// ctx is cancelled. Failures are logged.
func (m *Manager) Start(ctx context.Context, interval time.Duration, passphrase string, keep int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx, passphrase); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
					continue
				}
				if keep > 0 {
					if _, err := m.Prune(ctx, keep); err != nil {
						m.logger.Error("prune backups failed", "error", err)
					}
				}
			}
		}
	}()
}
