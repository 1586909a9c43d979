package archiving

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"holocene.dev/holod/common"
)

// LocalProvider runs a containerized snapshotting tool (monolith or
// warc) against a URL, grounded on common/docker.go's ContainerRun
// (create→start→wait→logs), pared to that essential sequence.
type LocalProvider struct {
	docker    *client.Client
	image     string
	format    string // "monolith" or "warc"
	outputDir string
}

// NewLocalProvider builds a provider that runs image in a short-lived
// container, writing snapshots under outputDir.
func NewLocalProvider(docker *client.Client, image, format, outputDir string) *LocalProvider {
	return &LocalProvider{docker: docker, image: image, format: format, outputDir: outputDir}
}

func (p *LocalProvider) Name() string {
	if p.format == "warc" {
		return "local_warc"
	}
	return "local_monolith"
}

// Archive runs the snapshotting container and returns the path it wrote
// the artifact to. Filename is {domain}_{hash8(url)}_{timestamp}.{ext},
// a new file every call — local archiving is not deduplicated.
func (p *LocalProvider) Archive(ctx context.Context, rawURL string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ext := "html"
	if p.format == "warc" {
		ext = "warc"
	}
	outPath := filepath.Join(p.outputDir, p.format, outputFilename(rawURL, ext))

	resp, err := p.docker.ContainerCreate(
		ctx,
		&containertypes.Config{
			Image:        p.image,
			Cmd:          []string{rawURL, "--output", outPath},
			AttachStdout: true,
			AttachStderr: true,
		},
		&containertypes.HostConfig{AutoRemove: true},
		&networktypes.NetworkingConfig{},
		&ocispec.Platform{},
		"",
	)
	if err != nil {
		return Result{}, fmt.Errorf("create %s container: %w", p.Name(), err)
	}

	if err := p.docker.ContainerStart(ctx, resp.ID, containertypes.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("start %s container: %w", p.Name(), err)
	}

	statusCh, errCh := p.docker.ContainerWait(ctx, resp.ID, containertypes.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return Result{}, fmt.Errorf("wait %s container: %w", p.Name(), err)
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			out, _ := p.readLogs(ctx, resp.ID)
			return Result{Status: "failed", Error: fmt.Sprintf("exit %d: %s", status.StatusCode, out)}, nil
		}
	}

	common.Logger.WithField("component", "archiving.local").WithField("format", p.format).Info("snapshot container finished")
	return Result{Status: "success", ArtifactRef: outPath}, nil
}

func (p *LocalProvider) readLogs(ctx context.Context, containerID string) (string, error) {
	out, err := p.docker.ContainerLogs(ctx, containerID, containertypes.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer out.Close()
	body, err := io.ReadAll(out)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func outputFilename(rawURL, ext string) string {
	sum := sha256.Sum256([]byte(rawURL))
	hash8 := hex.EncodeToString(sum[:])[:8]
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s_%s_%s.%s", domain, hash8, timestamp, ext)
}
