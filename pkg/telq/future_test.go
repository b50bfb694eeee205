package telq

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestFuture_Settled(t *testing.T) {
	v, err := Resolved("value").Await(context.Background())
	if err != nil || v != "value" {
		t.Errorf("Resolved().Await() = %v, %v", v, err)
	}

	rejectErr := errors.New("rejected")
	if _, err := Rejected(rejectErr).Await(context.Background()); !errors.Is(err, rejectErr) {
		t.Errorf("Rejected().Await() error = %v", err)
	}
}

func TestGo_ReturnsBeforeCompletion(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return "done", nil
	})

	select {
	case <-f.Done():
		t.Fatal("future settled before the work finished")
	default:
	}

	close(release)
	v, err := f.Await(context.Background())
	if err != nil || v != "done" {
		t.Errorf("Await() = %v, %v", v, err)
	}
}

func TestAwait_ContextDone(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (any, error) {
		time.Sleep(time.Second)
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() error = %v, want DeadlineExceeded", err)
	}
}

func TestAll(t *testing.T) {
	got, err := All(context.Background(), Resolved(1), Resolved("two"), Resolved(3.0))
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if want := []any{1, "two", 3.0}; !reflect.DeepEqual(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}

	rejectErr := errors.New("boom")
	if _, err := All(context.Background(), Resolved(1), Rejected(rejectErr)); !errors.Is(err, rejectErr) {
		t.Errorf("All() error = %v, want %v", err, rejectErr)
	}
}

func TestClient_Async(t *testing.T) {
	transport := &countingTransport{status: 200, body: `{"datum":"some data"}`}
	client := newTestClient(t, transport, nil)
	client.MustUse(echoPlugin("echo"), nil)

	ctx := context.Background()
	results, err := All(ctx,
		client.GetAsync(ctx, Options{URL: "http://server/a"}),
		client.PostAsync(ctx, Options{URL: "http://server/b", Body: "x"}),
		client.CallAsync(ctx, "echo", "payload"),
	)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	if !reflect.DeepEqual(results[0], someData) || !reflect.DeepEqual(results[1], someData) {
		t.Errorf("http results = %v", results[:2])
	}
	if results[2] != "payload" {
		t.Errorf("echo result = %v", results[2])
	}
}

func TestClient_GetAsyncMissingURL(t *testing.T) {
	client := newTestClient(t, &countingTransport{status: 200}, nil)

	if _, err := client.GetAsync(context.Background(), Options{}).Await(context.Background()); !errors.Is(err, ErrNoURL) {
		t.Errorf("GetAsync() error = %v, want ErrNoURL", err)
	}
}
