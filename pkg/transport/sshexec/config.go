package sshexec

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// AuthMethod selects how Config authenticates to the remote host.
type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "password"
	AuthMethodKey      AuthMethod = "key"
	AuthMethodAgent    AuthMethod = "agent"
)

// Config holds the SSH connection parameters for a Client, adapted from
// the teacher's ssh transport Config (a single host/credential pair
// instead of its proxy-chain and connection-pool fields, which this
// executor has no use for).
type Config struct {
	Host string
	Port int
	User string

	AuthMethod           AuthMethod
	Password             string
	PrivateKeyPath       string
	PrivateKeyPassphrase string

	KnownHostsPath        string
	StrictHostKeyChecking bool

	ConnectionTimeout time.Duration
	CommandTimeout    time.Duration

	// RemoteStateDir is where ExecuteUpdate/ExecuteAssignment/
	// RetractAssignment write their SFTP-backed state files.
	RemoteStateDir string
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("sshexec: host is required")
	}
	if c.User == "" {
		return fmt.Errorf("sshexec: user is required")
	}
	switch c.AuthMethod {
	case AuthMethodPassword:
		if c.Password == "" {
			return fmt.Errorf("sshexec: password auth requires a password")
		}
	case AuthMethodKey:
		if c.PrivateKeyPath == "" {
			return fmt.Errorf("sshexec: key auth requires a private key path")
		}
	case AuthMethodAgent:
	default:
		return fmt.Errorf("sshexec: unknown auth method %q", c.AuthMethod)
	}
	return nil
}

func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// BuildSSHClientConfig translates Config into an *ssh.ClientConfig,
// following the teacher's BuildSSHClientConfig password/key/agent
// dispatch and known_hosts handling.
func (c *Config) BuildSSHClientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	switch c.AuthMethod {
	case AuthMethodPassword:
		auth = append(auth, ssh.Password(c.Password))
	case AuthMethodKey:
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		var signer ssh.Signer
		if c.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(c.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case AuthMethodAgent:
		return nil, fmt.Errorf("sshexec: agent auth requires an agent-forwarded ClientConfig, not supported by BuildSSHClientConfig")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.StrictHostKeyChecking && c.KnownHostsPath != "" {
		cb, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	timeout := c.ConnectionTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}
