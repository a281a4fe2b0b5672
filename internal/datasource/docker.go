package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// ContainerInfo identifies one running container.
type ContainerInfo struct {
	ID   string
	Name string
}

// ContainerUsage is a single one-shot stats reading. CPU counters are
// cumulative nanoseconds; SystemTotal zero means the daemon did not report
// CPU accounting for this container. Memory and network fields are nil when
// the daemon omits them.
type ContainerUsage struct {
	CPUTotal    uint64
	SystemTotal uint64
	OnlineCPUs  uint32
	MemoryBytes *uint64
	RxBytes     *uint64
	TxBytes     *uint64
}

// ContainerClient lists running containers and reads their resource usage.
type ContainerClient interface {
	List(ctx context.Context) ([]ContainerInfo, error)
	Stats(ctx context.Context, id string) (ContainerUsage, error)
	Close() error
}

// DockerClient is the ContainerClient backed by the Docker Engine API. The
// underlying client dials lazily, so a daemon that starts after the agent
// does is picked up on the next reading.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient builds a client from the usual DOCKER_* environment, with
// API version negotiation so it works across daemon releases.
func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

// List returns the running containers. Containers without an ID are skipped.
func (d *DockerClient) List(ctx context.Context) ([]ContainerInfo, error) {
	summaries, err := d.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		if s.ID == "" {
			continue
		}
		infos = append(infos, ContainerInfo{ID: s.ID, Name: containerName(s)})
	}
	return infos, nil
}

// Stats performs a one-shot stats read for the given container.
func (d *DockerClient) Stats(ctx context.Context, id string) (ContainerUsage, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return ContainerUsage{}, fmt.Errorf("reading stats for %s: %w", id, err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return ContainerUsage{}, fmt.Errorf("decoding stats for %s: %w", id, err)
	}

	usage := ContainerUsage{
		CPUTotal:    stats.CPUStats.CPUUsage.TotalUsage,
		SystemTotal: stats.CPUStats.SystemUsage,
		OnlineCPUs:  stats.CPUStats.OnlineCPUs,
	}
	if stats.MemoryStats.Usage > 0 {
		mem := stats.MemoryStats.Usage
		usage.MemoryBytes = &mem
	}
	if stats.Networks != nil {
		var rx, tx uint64
		for _, net := range stats.Networks {
			rx += net.RxBytes
			tx += net.TxBytes
		}
		usage.RxBytes = &rx
		usage.TxBytes = &tx
	}
	return usage, nil
}

// Close releases the underlying HTTP client.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

func containerName(s container.Summary) string {
	name := s.ID
	if len(s.Names) > 0 && s.Names[0] != "" {
		name = s.Names[0]
	}
	return strings.TrimPrefix(name, "/")
}
