package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPAdapter uploads the artifact to remote directories over SFTP.
// Recipient values are remote directory paths; with no recipients the
// config's remote_path is the single target.
type SFTPAdapter struct {
	// dial is swappable for tests.
	dial func(cfg sftpConfig) (sftpSession, error)
}

type sftpSession interface {
	MkdirAll(path string) error
	Create(path string) (io.WriteCloser, error)
	Close() error
}

type sftpConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	RemotePath     string `json:"remote_path"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func NewSFTPAdapter() *SFTPAdapter {
	return &SFTPAdapter{dial: dialSFTP}
}

type sftpClientSession struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (s *sftpClientSession) MkdirAll(p string) error { return s.sftp.MkdirAll(p) }
func (s *sftpClientSession) Create(p string) (io.WriteCloser, error) {
	return s.sftp.Create(p)
}
func (s *sftpClientSession) Close() error {
	serr := s.sftp.Close()
	cerr := s.ssh.Close()
	if serr != nil {
		return serr
	}
	return cerr
}

func dialSFTP(cfg sftpConfig) (sftpSession, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	conn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", cfg.Host, port), sshCfg)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &sftpClientSession{ssh: conn, sftp: client}, nil
}

func (a *SFTPAdapter) Send(ctx context.Context, methodConfig string, recipients []string, artifact Artifact, vars map[string]string) (Detail, error) {
	var sc sftpConfig
	if methodConfig == "" {
		return nil, fmt.Errorf("sftp delivery config is empty")
	}
	if err := json.Unmarshal([]byte(methodConfig), &sc); err != nil {
		return nil, fmt.Errorf("invalid sftp delivery config: %v", err)
	}
	if sc.Host == "" {
		return nil, fmt.Errorf("sftp delivery config is missing host")
	}

	dirs := recipients
	if len(dirs) == 0 {
		if sc.RemotePath == "" {
			return nil, fmt.Errorf("sftp delivery has no remote path and no recipients")
		}
		dirs = []string{sc.RemotePath}
	}

	session, err := a.dial(sc)
	if err != nil {
		return nil, fmt.Errorf("sftp connect to %s: %v", sc.Host, err)
	}
	defer session.Close()

	src, err := os.Open(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %v", err)
	}
	defer src.Close()

	uploaded := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := session.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("sftp mkdir %s: %v", dir, err)
		}
		remote := path.Join(dir, artifact.FileName)
		dst, err := session.Create(remote)
		if err != nil {
			return nil, fmt.Errorf("sftp create %s: %v", remote, err)
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			dst.Close()
			return nil, err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return nil, fmt.Errorf("sftp upload %s: %v", remote, err)
		}
		if err := dst.Close(); err != nil {
			return nil, fmt.Errorf("sftp close %s: %v", remote, err)
		}
		uploaded = append(uploaded, remote)
	}

	return Detail{
		"host":  sc.Host,
		"paths": uploaded,
	}, nil
}
