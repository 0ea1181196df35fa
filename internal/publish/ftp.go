// Package publish uploads the generated data files to static hosting.
package publish

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
)

const dialTimeout = 30 * time.Second

// FTPConfig describes the upload target.
type FTPConfig struct {
	Host     string // host:port
	User     string
	Password string
	Dir      string // remote directory, e.g. "/public_html/data"
}

// FTPPublisher uploads files over FTP. Each file is stored under a temporary
// name and renamed into place so the site never serves a partial document.
type FTPPublisher struct {
	cfg FTPConfig
}

func NewFTPPublisher(cfg FTPConfig) *FTPPublisher {
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	return &FTPPublisher{cfg: cfg}
}

// Publish uploads the given local files into the configured remote directory.
func (p *FTPPublisher) Publish(ctx context.Context, paths ...string) error {
	conn, err := ftp.Dial(p.cfg.Host, ftp.DialWithTimeout(dialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(p.cfg.User, p.cfg.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}

	for _, local := range paths {
		if err := p.upload(conn, local); err != nil {
			return err
		}
	}
	log.Printf("publish: uploaded %d files to %s%s", len(paths), p.cfg.Host, p.cfg.Dir)
	return nil
}

func (p *FTPPublisher) upload(conn *ftp.ServerConn, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	final, tmp := remotePaths(p.cfg.Dir, local)
	if err := conn.Stor(tmp, f); err != nil {
		return fmt.Errorf("ftp stor %s: %w", tmp, err)
	}
	if err := conn.Rename(tmp, final); err != nil {
		return fmt.Errorf("ftp rename %s: %w", final, err)
	}
	return nil
}

// remotePaths returns the final and temporary remote names for a local file.
func remotePaths(dir, local string) (final, tmp string) {
	name := filepath.Base(local)
	if dir == "" {
		dir = "."
	}
	return path.Join(dir, name), path.Join(dir, "."+name+".tmp")
}
