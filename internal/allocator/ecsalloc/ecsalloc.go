// Package ecsalloc implements the cluster-task allocator variant
// (spec.md §4.2.1), launching one ECS task per job on a fixed task
// definition, capacity provider, security groups and subnets. It follows
// the same config-then-client construction
// (config.LoadDefaultConfig -> ecs.NewFromConfig) and narrow-interface
// pattern that hemzaz-freightliner's pkg/client/ecr uses for its ECR
// client: the SDK client is wrapped behind a local ecsAPI interface
// covering only RunTask/StopTask/DescribeTasks, so the allocator is
// unit-testable against a fake without touching AWS.
package ecsalloc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/vizsched/vizsched/internal/allocator"
)

// ecsAPI is the subset of the ECS SDK client this allocator depends on.
type ecsAPI interface {
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
	StopTask(ctx context.Context, params *ecs.StopTaskInput, optFns ...func(*ecs.Options)) (*ecs.StopTaskOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

// Config holds the per-allocator network parameters spec.md §6 enumerates
// for the AWS variant.
type Config struct {
	Cluster           string
	TaskDefinition    string
	CapacityProvider  string
	Subnets           []string
	SecurityGroups    []string
	BucketName        string
	MountPath         string
	HealthPort        int
	// HTTPClient probes the container health endpoint. Defaults to a
	// client with a short timeout if nil.
	HTTPClient *http.Client
}

// Allocator is the cluster-task Allocator variant.
type Allocator struct {
	api ecsAPI
	cfg Config
}

// New loads the default AWS config for region and constructs an Allocator.
func New(ctx context.Context, region string, cfg Config) (*Allocator, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("ecsalloc: load aws config: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 3 * time.Second}
	}
	return &Allocator{api: ecs.NewFromConfig(awsCfg), cfg: cfg}, nil
}

// newWithAPI is used by tests to inject a fake ecsAPI.
func newWithAPI(api ecsAPI, cfg Config) *Allocator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 3 * time.Second}
	}
	return &Allocator{api: api, cfg: cfg}
}

// CreateJob launches a task with the configured task definition, capacity
// provider, security groups and subnets, overriding S3_BUCKET_PATH and
// FUSE_MOUNT_POINT per spec.md §4.2.1. The returned task ARN is split on
// "/"; the last segment must be exactly 32 characters.
func (a *Allocator) CreateJob(ctx context.Context, _ string, payload allocator.CreateJobPayload) (string, error) {
	if payload.Project == "" {
		return "", fmt.Errorf("%w: payload.project is required", allocator.ErrAllocationFailed)
	}

	out, err := a.api.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(a.cfg.Cluster),
		TaskDefinition: aws.String(a.cfg.TaskDefinition),
		CapacityProviderStrategy: []ecstypes.CapacityProviderStrategyItem{
			{CapacityProvider: aws.String(a.cfg.CapacityProvider)},
		},
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        a.cfg.Subnets,
				SecurityGroups: a.cfg.SecurityGroups,
				AssignPublicIp: ecstypes.AssignPublicIpDisabled,
			},
		},
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{
				{
					Environment: []ecstypes.KeyValuePair{
						{Name: aws.String("S3_BUCKET_PATH"), Value: aws.String(fmt.Sprintf("%s:/%s", a.cfg.BucketName, payload.Project))},
						{Name: aws.String("FUSE_MOUNT_POINT"), Value: aws.String(fmt.Sprintf("%s/%s", a.cfg.MountPath, payload.Project))},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: run task: %v", allocator.ErrAllocationFailed, err)
	}
	if len(out.Tasks) == 0 {
		return "", fmt.Errorf("%w: run task returned no tasks", allocator.ErrAllocationFailed)
	}

	arn := aws.ToString(out.Tasks[0].TaskArn)
	return taskIDFromARN(arn)
}

// taskIDFromARN splits the task ARN on "/" and requires the last segment to
// be exactly 32 characters (spec.md §4.2.1).
func taskIDFromARN(arn string) (string, error) {
	parts := strings.Split(arn, "/")
	id := parts[len(parts)-1]
	if len(id) != 32 {
		return "", fmt.Errorf("%w: task id %q is not 32 characters", allocator.ErrInternal, id)
	}
	return id, nil
}

// DestroyJob stops the task by id. A failure surfaces as ErrInvalidJobID
// per spec.md §4.2.1.
func (a *Allocator) DestroyJob(ctx context.Context, jobID string) error {
	_, err := a.api.StopTask(ctx, &ecs.StopTaskInput{
		Cluster: aws.String(a.cfg.Cluster),
		Task:    aws.String(jobID),
		Reason:  aws.String("vizsched: job stopped"),
	})
	if err != nil {
		return fmt.Errorf("%w: stop task %s: %v", allocator.ErrInvalidJobID, jobID, err)
	}
	return nil
}

// GetJobDetails describes the task. It loops over containers looking for
// the first one exposing a private IPv4 address — a realistic ECS task
// definition can include sidecar containers with no network bindings, so
// the first container in the list isn't necessarily the right one; this is
// an independent engineering decision for this domain, not ported from
// original_source/ (see SPEC_FULL.md's supplemented features). If none is
// found, returns ready=false. If found, it probes
// http://<ip>:<health-port>/healthz; success reports ready=true with the
// container's ip as host, failure reports ready=false.
func (a *Allocator) GetJobDetails(ctx context.Context, _, jobID string) (allocator.JobDetails, error) {
	out, err := a.api.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(a.cfg.Cluster),
		Tasks:   []string{jobID},
	})
	if err != nil {
		return allocator.JobDetails{}, fmt.Errorf("%w: describe tasks: %v", allocator.ErrInternal, err)
	}
	if len(out.Tasks) == 0 {
		return allocator.JobDetails{}, fmt.Errorf("%w: %s", allocator.ErrJobNotFound, jobID)
	}

	ip := firstPrivateIPv4(out.Tasks[0].Containers)
	if ip == "" {
		return allocator.JobDetails{}, nil
	}

	if !a.probeHealthy(ctx, ip) {
		return allocator.JobDetails{}, nil
	}
	return allocator.JobDetails{Host: ip}, nil
}

// firstPrivateIPv4 returns the first private IPv4 address found across all
// containers' network interfaces, skipping containers that lack one.
func firstPrivateIPv4(containers []ecstypes.Container) string {
	for _, c := range containers {
		for _, iface := range c.NetworkInterfaces {
			if ip := aws.ToString(iface.PrivateIpv4Address); ip != "" {
				return ip
			}
		}
	}
	return ""
}

func (a *Allocator) probeHealthy(ctx context.Context, ip string) bool {
	url := fmt.Sprintf("http://%s:%d/healthz", ip, a.cfg.HealthPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases the allocator's health-probe HTTP client connections.
func (a *Allocator) Close() error {
	a.cfg.HTTPClient.CloseIdleConnections()
	return nil
}

var _ allocator.Allocator = (*Allocator)(nil)
