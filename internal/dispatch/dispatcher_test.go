package dispatch

import (
	"bytes"
	"context"
	"errors"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"

	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// mockCall records every request it receives and answers with a canned
// response or error.
type mockCall struct {
	mu        sync.Mutex
	resp      *Response
	err       error
	callCount int
	lastReq   RequestTree
}

func (m *mockCall) Call(ctx context.Context, req RequestTree) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockCall) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// mockConfirmer counts prompts and answers with a fixed value.
type mockConfirmer struct {
	answer    bool
	err       error
	callCount int
	lastReq   ConfirmationRequest
}

func (m *mockConfirmer) Confirm(ctx context.Context, req ConfirmationRequest) (bool, error) {
	m.callCount++
	m.lastReq = req
	return m.answer, m.err
}

type importJobOutput struct {
	ImportJobResponse *importJobResponse
}

type importJobResponse struct {
	Id        string
	JobStatus string
}

func importJobDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	d, err := NewDescriptor(Descriptor{
		Name:    "GetImportJob",
		Command: "get-import-job",
		Result:  "ImportJobResponse",
		Parameters: []ParameterSpec{
			{Name: "ApplicationId", Type: TypeString, Position: intPtr(0)},
			{Name: "JobId", Type: TypeString, Position: intPtr(1)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newOperation(t *testing.T, d *Descriptor, call *mockCall) *Operation {
	t.Helper()
	op, err := NewOperation(d, call.Call)
	if err != nil {
		t.Fatal(err)
	}
	return op
}

func fixedID() string { return "inv-1" }

func TestDispatch_FlatOperation(t *testing.T) {
	job := &importJobResponse{Id: "job-9", JobStatus: "COMPLETED"}
	call := &mockCall{resp: &Response{
		Raw:   &importJobOutput{ImportJobResponse: job},
		Notes: map[string]any{NoteRequestID: "req-1"},
	}}
	op := newOperation(t, importJobDescriptor(t), call)
	d := NewDispatcher(WithIDGenerator(fixedID))

	out := d.Dispatch(context.Background(), op, Args{Named: map[string]any{
		"ApplicationId": "app-1",
		"JobId":         "job-9",
	}}, Options{})

	if out.Status != Succeeded {
		t.Fatalf("expected success, got %v (%v)", out.Status, out.Err)
	}
	want := RequestTree{"ApplicationId": "app-1", "JobId": "job-9"}
	if !reflect.DeepEqual(call.lastReq, want) {
		t.Errorf("expected request %v, got %v", want, call.lastReq)
	}
	if out.Payload != job {
		t.Errorf("expected payload to be the import job, got %#v", out.Payload)
	}
	if out.InvocationID != "inv-1" || out.Operation != "GetImportJob" {
		t.Errorf("unexpected outcome identity %s/%s", out.InvocationID, out.Operation)
	}
	if out.Notes[NoteRequestID] != "req-1" {
		t.Errorf("expected notes to pass through, got %v", out.Notes)
	}
}

func TestDispatch_DeepestLeafOnly(t *testing.T) {
	call := &mockCall{resp: &Response{Raw: map[string]any{"SegmentResponse": map[string]any{"Id": "seg-1"}}}}
	op := newOperation(t, segmentDescriptor(t), call)
	d := NewDispatcher(WithConfirmer(StaticConfirmer{Answer: true}))

	out := d.Dispatch(context.Background(), op, Args{Named: map[string]any{
		"Country_Value": []any{"US"},
	}}, Options{})

	if out.Status != Succeeded {
		t.Fatalf("expected success, got %v (%v)", out.Status, out.Err)
	}
	want := RequestTree{
		"WriteSegmentRequest": map[string]any{
			"Dimensions": map[string]any{
				"Location": map[string]any{
					"Country": map[string]any{"Values": []string{"US"}},
				},
			},
		},
	}
	if !reflect.DeepEqual(call.lastReq, want) {
		t.Errorf("expected request %#v, got %#v", want, call.lastReq)
	}
}

func TestDispatch_ConfirmationGate(t *testing.T) {
	testCases := []struct {
		name          string
		mutating      bool
		force         bool
		confirmer     *mockConfirmer
		wantStatus    Status
		wantPrompts   int
		wantCallCount int
	}{
		{
			name:          "declined mutating operation",
			mutating:      true,
			confirmer:     &mockConfirmer{answer: false},
			wantStatus:    Aborted,
			wantPrompts:   1,
			wantCallCount: 0,
		},
		{
			name:          "confirmer error declines",
			mutating:      true,
			confirmer:     &mockConfirmer{err: errors.New("no tty")},
			wantStatus:    Aborted,
			wantPrompts:   1,
			wantCallCount: 0,
		},
		{
			name:          "confirmed mutating operation",
			mutating:      true,
			confirmer:     &mockConfirmer{answer: true},
			wantStatus:    Succeeded,
			wantPrompts:   1,
			wantCallCount: 1,
		},
		{
			name:          "forced mutating operation",
			mutating:      true,
			force:         true,
			confirmer:     &mockConfirmer{answer: false},
			wantStatus:    Succeeded,
			wantPrompts:   0,
			wantCallCount: 1,
		},
		{
			name:          "read-only operation",
			mutating:      false,
			confirmer:     &mockConfirmer{answer: false},
			wantStatus:    Succeeded,
			wantPrompts:   0,
			wantCallCount: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			desc, err := NewDescriptor(Descriptor{
				Name:     "DeleteApp",
				Command:  "delete-app",
				Mutating: tc.mutating,
				Identity: []string{"ApplicationId"},
				Parameters: []ParameterSpec{
					{Name: "ApplicationId", Type: TypeString},
				},
			})
			if err != nil {
				t.Fatal(err)
			}
			call := &mockCall{resp: &Response{}}
			op := newOperation(t, desc, call)
			d := NewDispatcher(WithConfirmer(tc.confirmer))

			out := d.Dispatch(context.Background(), op, Args{Named: map[string]any{"ApplicationId": "app-1"}}, Options{Force: tc.force})

			if out.Status != tc.wantStatus {
				t.Errorf("expected status %v, got %v (%v)", tc.wantStatus, out.Status, out.Err)
			}
			if tc.confirmer.callCount != tc.wantPrompts {
				t.Errorf("expected %d prompts, got %d", tc.wantPrompts, tc.confirmer.callCount)
			}
			if call.GetCallCount() != tc.wantCallCount {
				t.Errorf("expected %d remote calls, got %d", tc.wantCallCount, call.GetCallCount())
			}
			if out.Status == Aborted && !errors.Is(out.Err, ErrDeclined) {
				t.Errorf("expected aborted outcome to carry ErrDeclined, got %v", out.Err)
			}
			if tc.wantPrompts > 0 {
				want := `Performing the operation "DeleteApp" on target "app-1".`
				if tc.confirmer.lastReq.Message != want {
					t.Errorf("expected message %q, got %q", want, tc.confirmer.lastReq.Message)
				}
			}
		})
	}
}

func TestDispatch_DefaultConfirmerDeclines(t *testing.T) {
	call := &mockCall{resp: &Response{}}
	op := newOperation(t, segmentDescriptor(t), call)

	out := NewDispatcher().Dispatch(context.Background(), op, Args{Named: map[string]any{"ApplicationId": "app-1"}}, Options{})

	if out.Status != Aborted {
		t.Errorf("expected aborted, got %v", out.Status)
	}
	if call.GetCallCount() != 0 {
		t.Errorf("expected no remote call, got %d", call.GetCallCount())
	}
}

func TestDispatch_ErrorWrapping(t *testing.T) {
	conn := Connection{Service: "pinpoint", Region: "eu-west-1", Endpoint: "https://pinpoint.internal.example"}

	testCases := []struct {
		name          string
		err           error
		wantTransport bool
	}{
		{
			name:          "request send failure",
			err:           &smithyhttp.RequestSendError{Err: errors.New("connection refused")},
			wantTransport: true,
		},
		{
			name:          "dns failure",
			err:           &net.DNSError{Err: "no such host", Name: "pinpoint.internal.example"},
			wantTransport: true,
		},
		{
			name:          "service failure",
			err:           errors.New("NotFoundException: Resource not found"),
			wantTransport: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			call := &mockCall{err: tc.err}
			op := newOperation(t, importJobDescriptor(t), call)
			d := NewDispatcher(WithConnection(conn))

			out := d.Dispatch(context.Background(), op, Args{Named: map[string]any{"ApplicationId": "a", "JobId": "j"}}, Options{})

			if out.Status != Failed {
				t.Fatalf("expected failure, got %v", out.Status)
			}
			var transportErr *TransportResolutionError
			isTransport := errors.As(out.Err, &transportErr)
			if isTransport != tc.wantTransport {
				t.Fatalf("expected transport=%v, got %T: %v", tc.wantTransport, out.Err, out.Err)
			}
			if !errors.Is(out.Err, tc.err) {
				t.Errorf("expected original error to be preserved")
			}
			if tc.wantTransport {
				msg := out.Err.Error()
				if !strings.Contains(msg, conn.Endpoint) || !strings.Contains(msg, conn.Region) {
					t.Errorf("expected message to name endpoint and region, got %q", msg)
				}
				return
			}
			if out.Err.Error() != tc.err.Error() {
				t.Errorf("expected message untouched, got %q", out.Err.Error())
			}
		})
	}
}

func TestDispatch_BindFailureNeverCalls(t *testing.T) {
	call := &mockCall{resp: &Response{}}
	op := newOperation(t, importJobDescriptor(t), call)

	out := NewDispatcher().Dispatch(context.Background(), op, Args{Named: map[string]any{"Nope": "x"}}, Options{})

	if out.Status != Failed {
		t.Fatalf("expected failure, got %v", out.Status)
	}
	var unknown *UnknownParameterError
	if !errors.As(out.Err, &unknown) {
		t.Errorf("expected UnknownParameterError, got %T", out.Err)
	}
	if call.GetCallCount() != 0 {
		t.Errorf("expected no remote call, got %d", call.GetCallCount())
	}
}

func TestDispatch_Select(t *testing.T) {
	job := &importJobResponse{Id: "job-9"}
	raw := &importJobOutput{ImportJobResponse: job}

	testCases := []struct {
		name     string
		selectBy string
		want     any
		wantErr  bool
	}{
		{name: "default result member", selectBy: "", want: job},
		{name: "whole response", selectBy: "*", want: raw},
		{name: "bound parameter", selectBy: "^JobId", want: "job-9"},
		{name: "response member", selectBy: "importjobresponse", want: job},
		{name: "unknown parameter", selectBy: "^Missing", wantErr: true},
		{name: "unknown member", selectBy: "Nothing", wantErr: true},
		{name: "expression", selectBy: "a.b", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			call := &mockCall{resp: &Response{Raw: raw}}
			op := newOperation(t, importJobDescriptor(t), call)

			out := NewDispatcher().Dispatch(context.Background(), op,
				Args{Named: map[string]any{"ApplicationId": "app-1", "JobId": "job-9"}},
				Options{Select: tc.selectBy})

			if tc.wantErr {
				if out.Status != Failed || ErrorCode(out.Err) != CodeInvalidSelect {
					t.Fatalf("expected invalid select failure, got %v (%v)", out.Status, out.Err)
				}
				return
			}
			if out.Status != Succeeded {
				t.Fatalf("expected success, got %v (%v)", out.Status, out.Err)
			}
			if !reflect.DeepEqual(out.Payload, tc.want) {
				t.Errorf("expected %#v, got %#v", tc.want, out.Payload)
			}
		})
	}
}

func TestDispatch_InvalidSelectBeforeConfirmation(t *testing.T) {
	confirmer := &mockConfirmer{answer: true}
	call := &mockCall{resp: &Response{}}
	op := newOperation(t, segmentDescriptor(t), call)

	out := NewDispatcher(WithConfirmer(confirmer)).Dispatch(context.Background(), op,
		Args{Named: map[string]any{"ApplicationId": "app-1"}}, Options{Select: "^Nope"})

	if out.Status != Failed {
		t.Fatalf("expected failure, got %v", out.Status)
	}
	if confirmer.callCount != 0 || call.GetCallCount() != 0 {
		t.Errorf("expected no prompt and no call, got %d prompts and %d calls", confirmer.callCount, call.GetCallCount())
	}
}

type segmentOutput struct {
	SegmentResponse *struct{ Id string }
}

func TestDispatch_UnknownMemberSelectSkipsCall(t *testing.T) {
	testCases := []struct {
		name     string
		selectBy string
		wantCall bool
	}{
		{name: "unknown member", selectBy: "NoSuchMember"},
		{name: "declared member", selectBy: "segmentresponse", wantCall: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			call := &mockCall{resp: &Response{Raw: &segmentOutput{}}}
			op, err := NewOperation(segmentDescriptor(t), call.Call, WithOutputType(reflect.TypeFor[segmentOutput]()))
			if err != nil {
				t.Fatal(err)
			}

			out := NewDispatcher().Dispatch(context.Background(), op,
				Args{Named: map[string]any{"ApplicationId": "app-1"}},
				Options{Force: true, Select: tc.selectBy})

			if !tc.wantCall {
				if out.Status != Failed || ErrorCode(out.Err) != CodeInvalidSelect {
					t.Fatalf("expected invalid select failure, got %v (%v)", out.Status, out.Err)
				}
				if call.GetCallCount() != 0 {
					t.Errorf("expected no remote call, got %d", call.GetCallCount())
				}
				return
			}
			if out.Status != Succeeded {
				t.Fatalf("expected success, got %v (%v)", out.Status, out.Err)
			}
			if call.GetCallCount() != 1 {
				t.Errorf("expected 1 remote call, got %d", call.GetCallCount())
			}
		})
	}
}

func TestDispatch_SelectMissAfterCallKeepsResponse(t *testing.T) {
	raw := &importJobOutput{}
	call := &mockCall{resp: &Response{Raw: raw, Notes: map[string]any{NoteRequestID: "req-1"}}}
	op := newOperation(t, importJobDescriptor(t), call)

	out := NewDispatcher().Dispatch(context.Background(), op,
		Args{Named: map[string]any{"ApplicationId": "app-1", "JobId": "job-9"}},
		Options{Select: "Nothing"})

	if out.Status != Failed {
		t.Fatalf("expected failure, got %v", out.Status)
	}
	if out.Raw != raw {
		t.Errorf("expected raw response to be kept, got %#v", out.Raw)
	}
	if out.Notes[NoteRequestID] != "req-1" {
		t.Errorf("expected request id note, got %v", out.Notes)
	}
}

func TestDispatch_PanickingCallFails(t *testing.T) {
	desc := importJobDescriptor(t)
	op, err := NewOperation(desc, func(ctx context.Context, req RequestTree) (*Response, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}

	out := NewDispatcher().Dispatch(context.Background(), op, Args{}, Options{})

	if out.Status != Failed || !strings.Contains(out.Err.Error(), "boom") {
		t.Errorf("expected failure carrying the panic, got %v (%v)", out.Status, out.Err)
	}
}

func TestTerminalConfirmer(t *testing.T) {
	testCases := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(strings.TrimSpace(tc.input), func(t *testing.T) {
			out := &bytes.Buffer{}
			c := &TerminalConfirmer{In: strings.NewReader(tc.input), Out: out}

			got, err := c.Confirm(context.Background(), ConfirmationRequest{Message: "Performing the operation."})
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
			if !strings.Contains(out.String(), "Performing the operation.") {
				t.Errorf("expected prompt to include the message, got %q", out.String())
			}
		})
	}
}

func TestNewOperation_RequiresCompiledDescriptor(t *testing.T) {
	call := &mockCall{}
	if _, err := NewOperation(&Descriptor{Name: "Raw"}, call.Call); err == nil {
		t.Error("expected error for uncompiled descriptor")
	}
	if _, err := NewOperation(importJobDescriptor(t), nil); err == nil {
		t.Error("expected error for missing call")
	}
}
