package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/smithy-go/middleware"
	"github.com/go-viper/mapstructure/v2"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

// PinpointAPI is the subset of the Pinpoint client the catalog binds to.
type PinpointAPI interface {
	GetApp(ctx context.Context, params *pinpoint.GetAppInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetAppOutput, error)
	GetApps(ctx context.Context, params *pinpoint.GetAppsInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetAppsOutput, error)
	CreateApp(ctx context.Context, params *pinpoint.CreateAppInput, optFns ...func(*pinpoint.Options)) (*pinpoint.CreateAppOutput, error)
	DeleteApp(ctx context.Context, params *pinpoint.DeleteAppInput, optFns ...func(*pinpoint.Options)) (*pinpoint.DeleteAppOutput, error)
	GetImportJob(ctx context.Context, params *pinpoint.GetImportJobInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetImportJobOutput, error)
	GetExportJob(ctx context.Context, params *pinpoint.GetExportJobInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetExportJobOutput, error)
	CreateImportJob(ctx context.Context, params *pinpoint.CreateImportJobInput, optFns ...func(*pinpoint.Options)) (*pinpoint.CreateImportJobOutput, error)
	GetSegment(ctx context.Context, params *pinpoint.GetSegmentInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetSegmentOutput, error)
	CreateSegment(ctx context.Context, params *pinpoint.CreateSegmentInput, optFns ...func(*pinpoint.Options)) (*pinpoint.CreateSegmentOutput, error)
	UpdateSegment(ctx context.Context, params *pinpoint.UpdateSegmentInput, optFns ...func(*pinpoint.Options)) (*pinpoint.UpdateSegmentOutput, error)
	DeleteSegment(ctx context.Context, params *pinpoint.DeleteSegmentInput, optFns ...func(*pinpoint.Options)) (*pinpoint.DeleteSegmentOutput, error)
	GetEndpoint(ctx context.Context, params *pinpoint.GetEndpointInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetEndpointOutput, error)
	UpdateEndpoint(ctx context.Context, params *pinpoint.UpdateEndpointInput, optFns ...func(*pinpoint.Options)) (*pinpoint.UpdateEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *pinpoint.DeleteEndpointInput, optFns ...func(*pinpoint.Options)) (*pinpoint.DeleteEndpointOutput, error)
	GetEmailChannel(ctx context.Context, params *pinpoint.GetEmailChannelInput, optFns ...func(*pinpoint.Options)) (*pinpoint.GetEmailChannelOutput, error)
	UpdateEmailChannel(ctx context.Context, params *pinpoint.UpdateEmailChannelInput, optFns ...func(*pinpoint.Options)) (*pinpoint.UpdateEmailChannelOutput, error)
	UpdateGcmChannel(ctx context.Context, params *pinpoint.UpdateGcmChannelInput, optFns ...func(*pinpoint.Options)) (*pinpoint.UpdateGcmChannelOutput, error)
	ListTagsForResource(ctx context.Context, params *pinpoint.ListTagsForResourceInput, optFns ...func(*pinpoint.Options)) (*pinpoint.ListTagsForResourceOutput, error)
	TagResource(ctx context.Context, params *pinpoint.TagResourceInput, optFns ...func(*pinpoint.Options)) (*pinpoint.TagResourceOutput, error)
}

var bindings = map[string]binding{
	"GetApp":              bind(PinpointAPI.GetApp),
	"GetApps":             bind(PinpointAPI.GetApps),
	"CreateApp":           bind(PinpointAPI.CreateApp),
	"DeleteApp":           bind(PinpointAPI.DeleteApp),
	"GetImportJob":        bind(PinpointAPI.GetImportJob),
	"GetExportJob":        bind(PinpointAPI.GetExportJob),
	"CreateImportJob":     bind(PinpointAPI.CreateImportJob),
	"GetSegment":          bind(PinpointAPI.GetSegment),
	"CreateSegment":       bind(PinpointAPI.CreateSegment),
	"UpdateSegment":       bind(PinpointAPI.UpdateSegment),
	"DeleteSegment":       bind(PinpointAPI.DeleteSegment),
	"GetEndpoint":         bind(PinpointAPI.GetEndpoint),
	"UpdateEndpoint":      bind(PinpointAPI.UpdateEndpoint),
	"DeleteEndpoint":      bind(PinpointAPI.DeleteEndpoint),
	"GetEmailChannel":     bind(PinpointAPI.GetEmailChannel),
	"UpdateEmailChannel":  bind(PinpointAPI.UpdateEmailChannel),
	"UpdateGcmChannel":    bind(PinpointAPI.UpdateGcmChannel),
	"ListTagsForResource": bind(PinpointAPI.ListTagsForResource),
	"TagResource":         bind(PinpointAPI.TagResource),
}

type binding struct {
	input    reflect.Type
	output   reflect.Type
	call     func(api PinpointAPI) dispatch.RemoteCall
	dryRun   func(desc *dispatch.Descriptor) dispatch.RemoteCall
	validate func(desc *dispatch.Descriptor) error
}

// bind adapts a PinpointAPI method expression into a binding.
func bind[In, Out any](method func(PinpointAPI, context.Context, *In, ...func(*pinpoint.Options)) (*Out, error)) binding {
	b := binding{
		input:  reflect.TypeFor[In](),
		output: reflect.TypeFor[Out](),
	}

	b.call = func(api PinpointAPI) dispatch.RemoteCall {
		return func(ctx context.Context, req dispatch.RequestTree) (*dispatch.Response, error) {
			in, err := Decode[In](req)
			if err != nil {
				return nil, err
			}
			out, err := method(api, ctx, in)
			if err != nil {
				return nil, err
			}
			return &dispatch.Response{Raw: out, Notes: responseNotes(out)}, nil
		}
	}

	b.dryRun = func(desc *dispatch.Descriptor) dispatch.RemoteCall {
		return func(ctx context.Context, req dispatch.RequestTree) (*dispatch.Response, error) {
			if _, err := Decode[In](req); err != nil {
				return nil, err
			}
			redacted := req.Redacted(desc)
			slog.InfoContext(ctx, "[DRY-RUN] pinpoint call skipped",
				"operation", desc.Name,
				"request", redacted,
			)
			return &dispatch.Response{
				Raw: new(Out),
				Notes: map[string]any{
					dispatch.NoteDryRun:  true,
					dispatch.NoteRequest: map[string]any(redacted),
				},
			}, nil
		}
	}

	b.validate = func(desc *dispatch.Descriptor) error {
		for _, path := range desc.Paths() {
			if !resolves(b.input, strings.Split(path, ".")) {
				return fmt.Errorf("operation %s: request path %s not found on %s", desc.Name, path, b.input.Name())
			}
		}
		if desc.Result == "" {
			return nil
		}
		if !resolves(b.output, []string{desc.Result}) {
			return fmt.Errorf("operation %s: result member %s not found on %s", desc.Name, desc.Result, b.output.Name())
		}
		return nil
	}

	return b
}

// resolves reports whether the member path exists on t.
func resolves(t reflect.Type, path []string) bool {
	for _, seg := range path {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return false
		}
		f, ok := t.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, seg) })
		if !ok || !f.IsExported() {
			return false
		}
		t = f.Type
	}
	return true
}

// Decode converts a request tree into an SDK input value. Member names match
// case-insensitively; a tree key with no matching member is an error.
func Decode[In any](req dispatch.RequestTree) (*In, error) {
	in := new(In)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      in,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create request decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(req)); err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", reflect.TypeFor[In]().Name(), err)
	}
	return in, nil
}

// responseNotes extracts the request id from the SDK result metadata.
func responseNotes(out any) map[string]any {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil
	}
	f := rv.Elem().FieldByName("ResultMetadata")
	if !f.IsValid() {
		return nil
	}
	md, ok := f.Interface().(middleware.Metadata)
	if !ok {
		return nil
	}
	id, ok := awsmiddleware.GetRequestIDMetadata(md)
	if !ok || id == "" {
		return nil
	}
	return map[string]any{dispatch.NoteRequestID: id}
}
