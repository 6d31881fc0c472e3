// Package grpcclient is the runner's concrete gRPC transport: a descriptor
// pool compiled from .proto sources plus dynamic unary invocation, so VU
// bodies can drive arbitrary gRPC services without generated stubs.
package grpcclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/dynamic/grpcdynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies a gRPC transport failure.
type ErrorKind string

const (
	ErrConnect       ErrorKind = "connect"
	ErrMethodLookup  ErrorKind = "method_lookup"
	ErrEncode        ErrorKind = "encode"
	ErrInvoke        ErrorKind = "invoke"
	ErrTimeout       ErrorKind = "timeout"
)

// Error wraps a classified gRPC transport failure.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("grpcclient: %s: %v", e.Kind, e.Cause) }
func (e *Error) Unwrap() error { return e.Cause }

// TLSConfig mirrors the runner's external contract: CA, client identity,
// SNI override, insecure skip-verify.
type TLSConfig struct {
	CACert             []byte
	ClientCert         []byte
	ClientKey          []byte
	ServerNameOverride string
	InsecureSkipVerify bool
}

// ConnectOptions controls a single Connect call.
type ConnectOptions struct {
	TLS         *TLSConfig
	ProtoPaths  []string // directories to search for imports
	ProtoFiles  []string // .proto files to compile into the descriptor pool
}

// Schema is a compiled descriptor pool a Conn's methods are looked up in.
type Schema struct {
	files []*desc.FileDescriptor
}

// CompileSchema parses and links the given .proto files, searching
// ProtoPaths for imports.
func CompileSchema(opts ConnectOptions) (*Schema, error) {
	parser := protoparse.Parser{ImportPaths: opts.ProtoPaths}
	files, err := parser.ParseFiles(opts.ProtoFiles...)
	if err != nil {
		return nil, &Error{Kind: ErrMethodLookup, Cause: err}
	}
	return &Schema{files: files}, nil
}

// Method looks up a fully-qualified "package.Service/Method" reference in
// the schema.
func (s *Schema) Method(fqName string) (*desc.MethodDescriptor, error) {
	svc, method, err := splitMethodRef(fqName)
	if err != nil {
		return nil, err
	}
	for _, f := range s.files {
		if sd := f.FindService(svc); sd != nil {
			if md := sd.FindMethodByName(method); md != nil {
				return md, nil
			}
		}
	}
	return nil, &Error{Kind: ErrMethodLookup, Cause: fmt.Errorf("method %q not found in schema", fqName)}
}

func splitMethodRef(fqName string) (service, method string, err error) {
	idx := -1
	for i := len(fqName) - 1; i >= 0; i-- {
		if fqName[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", fmt.Errorf("grpcclient: method reference %q must be \"package.Service/Method\"", fqName)
	}
	return fqName[:idx], fqName[idx+1:], nil
}

// Conn is a connected channel plus its schema, ready for unary invocation.
type Conn struct {
	cc     *grpc.ClientConn
	stub   grpcdynamic.Stub
	schema *Schema
}

// Connect dials endpoint and compiles opts' proto sources into a schema.
func Connect(ctx context.Context, endpoint string, opts ConnectOptions) (*Conn, error) {
	schema, err := CompileSchema(opts)
	if err != nil {
		return nil, err
	}

	var dialOpts []grpc.DialOption
	if opts.TLS != nil {
		creds, err := buildTransportCreds(opts.TLS)
		if err != nil {
			return nil, &Error{Kind: ErrConnect, Cause: err}
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	cc, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, &Error{Kind: ErrConnect, Cause: err}
	}

	return &Conn{cc: cc, stub: grpcdynamic.NewStub(cc), schema: schema}, nil
}

func buildTransportCreds(cfg *TLSConfig) (credentials.TransportCredentials, error) {
	tc := &tls.Config{
		ServerName:         cfg.ServerNameOverride,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if len(cfg.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.CACert) {
			return nil, fmt.Errorf("grpcclient: no certificates found in CA bundle")
		}
		tc.RootCAs = pool
	}
	if len(cfg.ClientCert) > 0 && len(cfg.ClientKey) > 0 {
		cert, err := tls.X509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, err
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return credentials.NewTLS(tc), nil
}

// Close tears down the underlying channel.
func (c *Conn) Close() error { return c.cc.Close() }

// InvokeOptions controls a single unary call.
type InvokeOptions struct {
	Metadata map[string]string
	Timeout  time.Duration
}

// UnaryResult is the outcome of one InvokeUnary call.
type UnaryResult struct {
	OK            bool
	StatusCode    uint32
	StatusMessage string
	Response      map[string]interface{}
	Headers       map[string][]string
	Trailers      map[string][]string
	Elapsed       time.Duration
	BytesSent     int64
	BytesReceived int64
}

// InvokeUnary looks up method in the connection's schema, encodes value as
// a dynamic request message, invokes it, and decodes the reply back into a
// plain map.
func (c *Conn) InvokeUnary(ctx context.Context, method string, value map[string]interface{}, opts InvokeOptions) (UnaryResult, error) {
	start := time.Now()

	md, err := c.schema.Method(method)
	if err != nil {
		return UnaryResult{}, err
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if len(opts.Metadata) > 0 {
		pairs := make([]string, 0, len(opts.Metadata)*2)
		for k, v := range opts.Metadata {
			pairs = append(pairs, k, v)
		}
		reqCtx = metadata.NewOutgoingContext(reqCtx, metadata.Pairs(pairs...))
	}

	reqMsg := dynamic.NewMessage(md.GetInputType())
	if err := populateMessage(reqMsg, value); err != nil {
		return UnaryResult{}, &Error{Kind: ErrEncode, Cause: err}
	}
	reqBytes, err := reqMsg.Marshal()
	if err != nil {
		return UnaryResult{}, &Error{Kind: ErrEncode, Cause: err}
	}

	var headerMD, trailerMD metadata.MD
	respMsg, err := c.stub.InvokeRpc(reqCtx, md, reqMsg,
		grpc.Header(&headerMD), grpc.Trailer(&trailerMD))

	result := UnaryResult{
		Elapsed:   time.Since(start),
		BytesSent: int64(len(reqBytes)),
		Headers:   metadata.MD(headerMD),
		Trailers:  metadata.MD(trailerMD),
	}

	if err != nil {
		st, _ := status.FromError(err)
		result.StatusCode = uint32(st.Code())
		result.StatusMessage = st.Message()
		if reqCtx.Err() == context.DeadlineExceeded {
			return result, &Error{Kind: ErrTimeout, Cause: err}
		}
		return result, &Error{Kind: ErrInvoke, Cause: err}
	}

	dm, ok := respMsg.(*dynamic.Message)
	if !ok {
		return result, &Error{Kind: ErrInvoke, Cause: fmt.Errorf("unexpected response message type %T", respMsg)}
	}
	respBytes, _ := dm.Marshal()
	result.BytesReceived = int64(len(respBytes))
	result.OK = true
	result.Response = dm.AsMap()
	return result, nil
}

func populateMessage(msg *dynamic.Message, value map[string]interface{}) error {
	for k, v := range value {
		if err := msg.TrySetFieldByName(k, v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	return nil
}
