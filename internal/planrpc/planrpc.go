// Package planrpc sketches the unified-planning "planOneShot" streaming
// gRPC boundary spec.md §6 names as an external collaborator the core
// never consumes: a caller translating a PDDL/HDDL/unified-planning problem
// into the chronicle IR (out of scope here) would speak this RPC, and a
// server wrapping internal/kernel/problem would answer it. The dependency
// only runs this direction — nothing under internal/kernel imports this
// package.
//
// Hand-rolled against google.golang.org/grpc's ServiceDesc directly rather
// than protoc-generated stubs, since generating .pb.go types requires a
// protoc toolchain this module never invokes; messages are carried with a
// JSON codec (registered below) instead of wire-format protobuf. Both are
// deliberate scope-limiting choices for a boundary spec.md explicitly marks
// out of scope beyond a sketch.
package planrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/lcgkit/solver/internal/kernel/errs"
)

// ResolutionMode is the PlanRequest's resolution mode (spec §6).
type ResolutionMode int

const (
	Satisfiable ResolutionMode = iota
	Optimal
)

// PlanRequest carries an opaque problem payload (producing it from
// PDDL/HDDL/unified-planning input is the out-of-scope chronicle
// translator's job) plus the resolution mode, timeout, and opaque planner
// options spec §6 names.
type PlanRequest struct {
	Problem        json.RawMessage
	Mode           ResolutionMode
	TimeoutSeconds float64
	Options        map[string]string
}

// ActionInstance is one step of a found plan (spec §6).
type ActionInstance struct {
	Action     string
	Parameters []string
	Start      *int64
	End        *int64
}

// Answer is either an IntermediateReport or a FinalReport; exactly one of
// the two pointer fields is set per message, the streaming union spec §6
// describes as "Answer = IntermediateReport | FinalReport".
type Answer struct {
	Intermediate *IntermediateReport
	Final        *FinalReport
}

// IntermediateReport is a progress update emitted mid-search.
type IntermediateReport struct {
	Conflicts int
	Restarts  int
	Elapsed   float64
}

// FinalReport is the terminal message of a planOneShot stream. Status
// reuses internal/kernel/errs.Status directly: its values already are
// spec §6's {Sat, Opt, Unsat, SearchSpaceExhausted, Timeout, Memout,
// InternalError, UnsupportedProblem}.
type FinalReport struct {
	Status errs.Status
	Plan   []ActionInstance
}

// Planner is the one method a server backing planOneShot must implement.
// internal/kernel/problem.Problem does not implement it directly —
// producing a Plan from a Problem's model is the out-of-scope chronicle
// layer's job — but a caller wrapping one can.
type Planner interface {
	PlanOneShot(req *PlanRequest, send func(*Answer) error) error
}

const serviceName = "lcgkit.planrpc.Planner"

// ServiceDesc is the hand-rolled grpc.ServiceDesc for registering a Planner
// against a *grpc.Server, standing in for the protoc-generated
// RegisterPlannerServer a full build would use.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Planner)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "PlanOneShot",
			Handler:       planOneShotHandler,
			ServerStreams: true,
		},
	},
	Metadata: "planrpc.proto",
}

func planOneShotHandler(srv interface{}, stream grpc.ServerStream) error {
	planner, ok := srv.(Planner)
	if !ok {
		return fmt.Errorf("planrpc: server does not implement Planner")
	}

	req := new(PlanRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	return planner.PlanOneShot(req, func(a *Answer) error {
		return stream.SendMsg(a)
	})
}

// RegisterPlannerServer wires p into s under ServiceDesc.
func RegisterPlannerServer(s *grpc.Server, p Planner) {
	s.RegisterService(&ServiceDesc, p)
}

// PlanOneShotMethod is the fully-qualified method name passed to
// cc.NewStream by client callers (e.g. PlanOneShot below), spelled out
// explicitly since no protoc-generated client stub exists to hide it.
const PlanOneShotMethod = "/" + serviceName + "/PlanOneShot"

// PlanOneShot is the hand-rolled client stub: it opens the stream, sends
// the single request, half-closes, and returns a channel of every Answer
// the server streams back, closed when the stream ends (error or EOF).
func PlanOneShot(ctx context.Context, cc grpc.ClientConnInterface, req *PlanRequest) (<-chan *Answer, error) {
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], PlanOneShotMethod, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	out := make(chan *Answer)
	go func() {
		defer close(out)
		for {
			a := new(Answer)
			if err := stream.RecvMsg(a); err != nil {
				return
			}
			out <- a
		}
	}()
	return out, nil
}

const jsonCodecName = "json"

// jsonCodec marshals every planrpc message as JSON rather than wire-format
// protobuf, since no .pb.go types exist to carry (see package doc).
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
