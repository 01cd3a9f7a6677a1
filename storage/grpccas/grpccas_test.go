package grpccas

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/anuraag-khare/prompt-fence/storage"
	"github.com/anuraag-khare/prompt-fence/storage/localfs"
	"github.com/anuraag-khare/prompt-fence/storage/memory"
	"github.com/anuraag-khare/prompt-fence/storage/testkit"
)

func bufnetClient(t *testing.T, backend storage.CAS) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterCASServer(srv, &Server{CAS: backend})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewCASClient(cc), Timeout: 2 * time.Second}
}

func TestGRPCCAS_LocalFS_RoundTrip(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := bufnetClient(t, cas)

	payload := []byte("hello prompt archive")
	id, err := client.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !id.Defined() {
		t.Fatalf("expected defined CID")
	}
	if !client.Has(id) {
		t.Fatalf("Has: expected true")
	}
	got, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestGRPCCAS_Conformance(t *testing.T) {
	// The client implements storage.CAS, so the same conformance suite the
	// in-process backends pass runs over the wire.
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		return bufnetClient(t, memory.New())
	})
}

func TestGRPCCAS_ErrorMapping(t *testing.T) {
	client := bufnetClient(t, memory.New())

	id, err := client.Put([]byte("present"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A CID the backend has never seen maps back to ErrNotFound.
	fresh := bufnetClient(t, memory.New())
	if _, err := fresh.Get(id); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: got %v want ErrNotFound", err)
	}
	if fresh.Has(id) {
		t.Fatal("Has on empty backend must be false")
	}
}
