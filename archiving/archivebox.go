package archiving

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"holocene.dev/holod/common"
)

// ArchiveBoxProvider drives a remote ArchiveBox instance over SSH,
// grounded on transport/ssh.go's SSHTunnelTransport (client config,
// known-hosts, key auth) and
// original_source/integrations/archivebox.py's _run_command (remote
// command, timeout, stdout/stderr capture).
type ArchiveBoxProvider struct {
	host, user, keyFile, knownHostsFile, remoteDataDir string
	queueCache                                         *QueueDepthCache
	queueThreshold                                      int
}

// NewArchiveBoxProvider builds a provider reaching host as user,
// authenticating with the key at keyFile and verifying against
// knownHostsFile (InsecureIgnoreHostKey if empty).
func NewArchiveBoxProvider(host, user, keyFile, knownHostsFile, remoteDataDir string, cache *QueueDepthCache, queueThreshold int) *ArchiveBoxProvider {
	return &ArchiveBoxProvider{
		host: host, user: user, keyFile: keyFile, knownHostsFile: knownHostsFile,
		remoteDataDir: remoteDataDir, queueCache: cache, queueThreshold: queueThreshold,
	}
}

func (p *ArchiveBoxProvider) Name() string { return "archivebox" }

func (p *ArchiveBoxProvider) dial() (*ssh.Client, error) {
	key, err := os.ReadFile(p.keyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	var hostKeyCallback ssh.HostKeyCallback
	if p.knownHostsFile != "" {
		hostKeyCallback, err = knownhosts.New(p.knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            p.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         5 * time.Second,
	}
	return ssh.Dial("tcp", p.host+":22", config)
}

// runCommand runs `cd {remoteDataDir} && sudo -u archivebox archivebox
// {args}` on the remote host, capturing stdout/stderr, bounded by the
// session's deadline.
func (p *ArchiveBoxProvider) runCommand(ctx context.Context, args string) (stdout, stderr string, err error) {
	client, err := p.dial()
	if err != nil {
		return "", "", fmt.Errorf("dial archivebox host: %w", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	cmd := fmt.Sprintf("cd %s && sudo -u archivebox archivebox %s", p.remoteDataDir, args)

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return outBuf.String(), errBuf.String(), ctx.Err()
	case err := <-done:
		return outBuf.String(), errBuf.String(), err
	}
}

// QueueDepth reports the remote ArchiveBox queue depth, using the
// cached value when still fresh so a probe does not SSH on every
// archive_url call.
func (p *ArchiveBoxProvider) QueueDepth(ctx context.Context) (int, error) {
	if p.queueCache != nil {
		if depth, ok := p.queueCache.Get(); ok {
			return depth, nil
		}
	}

	stdout, _, err := p.runCommand(ctx, "status")
	if err != nil {
		return 0, fmt.Errorf("probe archivebox queue depth: %w", err)
	}
	depth := parseQueueDepth(stdout)
	if p.queueCache != nil {
		p.queueCache.Set(depth)
	}
	return depth, nil
}

// Archive submits url to the remote ArchiveBox instance, skipping if
// the queue depth exceeds the configured threshold.
func (p *ArchiveBoxProvider) Archive(ctx context.Context, rawURL string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	depth, err := p.QueueDepth(ctx)
	if err != nil {
		common.Logger.WithField("component", "archiving.archivebox").WithError(err).Warn("queue depth probe failed, proceeding anyway")
	} else if depth > p.queueThreshold {
		return Result{Status: "failed", Error: fmt.Sprintf("queue depth %d exceeds threshold %d", depth, p.queueThreshold)}, nil
	}

	_, stderr, err := p.runCommand(ctx, "add "+rawURL)
	if err != nil {
		return Result{Status: "failed", Error: fmt.Sprintf("%v: %s", err, stderr)}, nil
	}
	return Result{Status: "success", ArtifactRef: p.host + ":" + p.remoteDataDir}, nil
}

// parseQueueDepth is a best-effort scan of `archivebox status` output;
// ArchiveBox does not expose a machine-readable count, so this looks
// for a trailing integer on a line mentioning "queue" or "pending".
func parseQueueDepth(output string) int {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "queue") && !strings.Contains(lower, "pending") {
			continue
		}
		fields := strings.Fields(line)
		if depth, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			return depth
		}
	}
	return 0
}
