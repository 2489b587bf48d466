package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// DefaultPasswdPath is the account database scanned for SSH users
const DefaultPasswdPath = "/etc/passwd"

// SSHInfo identifies the account operators should log in with
type SSHInfo struct {
	Username    string
	Fingerprint string
}

// Fingerprint returns the MD5 colon-hex fingerprint of the first public key
// found in authorized_keys data
func Fingerprint(authorizedKeys []byte) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(authorizedKeys)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintLegacyMD5(pub), nil
}

// DiscoverSSH returns the first account of passwdPath whose
// ~/.ssh/authorized_keys holds a parseable key. Keys the agent may not read
// are read through sudo when not running as root. It returns nil when no
// account qualifies.
func DiscoverSSH(ctx context.Context, runner Runner, uid int, passwdPath string) (*SSHInfo, error) {
	return discoverSSH(ctx, runner, uid, passwdPath, os.ReadFile)
}

func discoverSSH(ctx context.Context, runner Runner, uid int, passwdPath string, readFile func(string) ([]byte, error)) (*SSHInfo, error) {
	data, err := readFile(passwdPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", passwdPath, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 6 {
			continue
		}
		username, home := fields[0], fields[5]
		if home == "" || home == "/" {
			continue
		}

		path := filepath.Join(home, ".ssh", "authorized_keys")
		keys, err := readFile(path)
		if errors.Is(err, fs.ErrPermission) && uid != 0 {
			name, args := privileged(uid, "cat", path)
			if keys, err = runner.Run(ctx, name, args...); err != nil {
				continue
			}
		}
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
				return nil, fmt.Errorf("failed to read authorized keys of %s: %w", username, err)
			}
			continue
		}
		fingerprint, err := Fingerprint(keys)
		if err != nil {
			continue
		}
		return &SSHInfo{Username: username, Fingerprint: fingerprint}, nil
	}
	return nil, scanner.Err()
}
