package studentagent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Serve runs the process protocol on stdin/stdout until stdin is closed.
func Serve(ctor Constructor) error {
	return ServeIO(os.Stdin, os.Stdout, ctor)
}

// ServeIO runs the process protocol on r and w until r is exhausted.
// Panics raised by ctor or by an agent are reported as request errors.
func ServeIO(r io.Reader, w io.Writer, ctor Constructor) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(Hello{Protocol: ProtocolVersion, Exports: []string{ExportName}}); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	s := &server{ctor: ctor, instances: make(map[int]Agent)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = fmt.Sprintf("malformed request: %v", err)
		} else {
			resp = s.handle(req)
		}

		if err := enc.Encode(resp); err != nil {
			// Typically a NaN or Inf in the action, which JSON cannot carry.
			fallback := Response{ID: resp.ID, Error: fmt.Sprintf("encode response: %v", err)}
			if err := enc.Encode(fallback); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
	return scanner.Err()
}

type server struct {
	ctor      Constructor
	instances map[int]Agent
	next      int
}

func (s *server) handle(req Request) Response {
	resp := Response{ID: req.ID}

	switch req.Op {
	case OpNew:
		a, err := s.construct(req.Role)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		s.next++
		s.instances[s.next] = a
		resp.Instance = s.next

	case OpAct:
		a, ok := s.instances[req.Instance]
		if !ok {
			resp.Error = fmt.Sprintf("unknown instance %d", req.Instance)
			return resp
		}
		action, err := act(a, req.Observation, req.ParticipantID)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Instance = req.Instance
		resp.Action = action

	case OpFree:
		delete(s.instances, req.Instance)
		resp.Instance = req.Instance

	default:
		resp.Error = fmt.Sprintf("unknown op %q", req.Op)
	}
	return resp
}

func (s *server) construct(role string) (a Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s(%q): %v", ExportName, role, r)
		}
	}()
	a, err = s.ctor(role)
	if err == nil && a == nil {
		err = fmt.Errorf("%s(%q) returned nil", ExportName, role)
	}
	return a, err
}

func act(a Agent, observation []float64, participantID string) (action []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in GetAction: %v", r)
		}
	}()
	return a.GetAction(observation, participantID)
}
