package transport

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/fleetrun/fleetrun/internal/hostlist"
)

// defaultKeyNames are tried, in order, when a host's key path is empty.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authMethods maps a host's auth descriptor onto SSH auth methods.
func authMethods(a hostlist.Auth) ([]ssh.AuthMethod, error) {
	switch a := a.(type) {
	case hostlist.PasswordAuth:
		return []ssh.AuthMethod{ssh.Password(a.Secret)}, nil
	case hostlist.KeyAuth:
		if a.Path != "" {
			signer, err := loadSigner(a.Path)
			if err != nil {
				return nil, err
			}
			return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
		}
		signers, err := defaultSigners()
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, nil
	default:
		return nil, fmt.Errorf("unknown auth descriptor %T", a)
	}
}

func loadSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}

// defaultSigners loads whichever of the conventional key files exist
// under ~/.ssh.
func defaultSigners() ([]ssh.Signer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	var signers []ssh.Signer
	for _, name := range defaultKeyNames {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		signer, err := loadSigner(path)
		if err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no private key found under %s", filepath.Join(home, ".ssh"))
	}
	return signers, nil
}
