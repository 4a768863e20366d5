// Package camundatest records the commands a job handler sends, so handler
// tests can assert on completions and failures without a broker.
package camundatest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"google.golang.org/grpc"
)

type Completion struct {
	JobKey    int64
	Variables string
}

type Failure struct {
	JobKey       int64
	Retries      int32
	ErrorMessage string
	Variables    string
}

type Thrown struct {
	JobKey       int64
	ErrorCode    string
	ErrorMessage string
	Variables    string
}

// JobClient implements worker.JobClient on top of a recording gateway.
type JobClient struct {
	gw *gateway
}

func NewJobClient() *JobClient {
	return &JobClient{gw: &gateway{}}
}

func noRetry(context.Context, error) bool { return false }

func (c *JobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gw, noRetry)
}

func (c *JobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gw, noRetry)
}

func (c *JobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gw, noRetry)
}

func (c *JobClient) Completed() []Completion {
	c.gw.mu.Lock()
	defer c.gw.mu.Unlock()
	return append([]Completion(nil), c.gw.completed...)
}

func (c *JobClient) Failed() []Failure {
	c.gw.mu.Lock()
	defer c.gw.mu.Unlock()
	return append([]Failure(nil), c.gw.failed...)
}

func (c *JobClient) Thrown() []Thrown {
	c.gw.mu.Lock()
	defer c.gw.mu.Unlock()
	return append([]Thrown(nil), c.gw.thrown...)
}

// DecodeCompletion unmarshals the variables of the only completion.
func (c *JobClient) DecodeCompletion(out interface{}) error {
	done := c.Completed()
	if len(done) != 1 {
		return &countError{want: 1, got: len(done)}
	}
	return json.Unmarshal([]byte(done[0].Variables), out)
}

type countError struct{ want, got int }

func (e *countError) Error() string {
	return "camundatest: expected " + strconv.Itoa(e.want) + " completion(s), got " + strconv.Itoa(e.got)
}

// NewJob builds an activated job carrying variables.
func NewJob(key int64, taskType string, variables interface{}) entities.Job {
	var vars string
	switch v := variables.(type) {
	case string:
		vars = v
	default:
		b, _ := json.Marshal(v)
		vars = string(b)
	}
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               taskType,
		Retries:            3,
		ProcessInstanceKey: key * 10,
		Variables:          vars,
	}}
}

// gateway embeds the full interface so only job commands need bodies;
// anything else panics, which a handler test should never reach.
type gateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []Completion
	failed    []Failure
	thrown    []Thrown
}

func (g *gateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = append(g.completed, Completion{JobKey: in.JobKey, Variables: in.Variables})
	return &pb.CompleteJobResponse{}, nil
}

func (g *gateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, Failure{JobKey: in.JobKey, Retries: in.Retries, ErrorMessage: in.ErrorMessage, Variables: in.Variables})
	return &pb.FailJobResponse{}, nil
}

func (g *gateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thrown = append(g.thrown, Thrown{JobKey: in.JobKey, ErrorCode: in.ErrorCode, ErrorMessage: in.ErrorMessage, Variables: in.Variables})
	return &pb.ThrowErrorResponse{}, nil
}
